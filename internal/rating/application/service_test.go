package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	rating "waterbill/internal/rating/domain"
	"waterbill/internal/rating/infrastructure/memory"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func seedTiers() []rating.RateTier {
	return []rating.RateTier{
		{UsageStart: 0, UsageEnd: 10, PricePerM3: dec("5"), Classification: rating.ClassificationResidential, Tax: dec("0.15"), ServiceFee: dec("5")},
		{UsageStart: 11, UsageEnd: 20, PricePerM3: dec("10"), Classification: rating.ClassificationResidential, Tax: dec("0.15"), ServiceFee: dec("5")},
		{UsageStart: 0, UsageEnd: 10, PricePerM3: dec("7.5"), Classification: rating.ClassificationCommercial, Tax: dec("0.20"), ServiceFee: dec("10")},
		{UsageStart: 11, UsageEnd: 20, PricePerM3: dec("15"), Classification: rating.ClassificationCommercial, Tax: dec("0.20"), ServiceFee: dec("10")},
	}
}

type countingRepo struct {
	*memory.RateRepository
	lists int
}

func (r *countingRepo) List(ctx context.Context) ([]rating.RateTier, error) {
	r.lists++
	return r.RateRepository.List(ctx)
}

// gatedRepo pauses the first List after it has read the table, so a write can
// land while that read is in flight.
type gatedRepo struct {
	*memory.RateRepository
	gated   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (r *gatedRepo) List(ctx context.Context) ([]rating.RateTier, error) {
	tiers, err := r.RateRepository.List(ctx)
	if r.gated.CompareAndSwap(false, true) {
		close(r.read)
		<-r.release
	}
	return tiers, err
}

func TestTiers_WriteDuringReadIsNotCachedStale(t *testing.T) {
	repo := &gatedRepo{
		RateRepository: memory.NewRateRepository(seedTiers()...),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc, err := NewRateService(repo, WithCacheTTL(time.Minute))
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan []rating.RateTier)
	go func() {
		tiers, err := svc.Tiers(ctx)
		if err != nil {
			tiers = nil
		}
		done <- tiers
	}()
	<-repo.read

	_, err = svc.Create(ctx, rating.RateTier{UsageStart: 21, UsageEnd: 50, PricePerM3: dec("12"), Classification: rating.ClassificationResidential})
	require.NoError(t, err)

	close(repo.release)
	require.Len(t, <-done, 4)

	tiers, err := svc.Tiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 5)
}

func TestQuote_Scenarios(t *testing.T) {
	svc, err := NewRateService(memory.NewRateRepository(seedTiers()...))
	require.NoError(t, err)
	ctx := context.Background()

	result, err := svc.Quote(ctx, QuoteRequest{Usage: 8, Classification: "Residential"})
	require.NoError(t, err)
	require.True(t, result.Priced())
	require.True(t, dec("51").Equal(result.Total), result.Total.String())

	result, err = svc.Quote(ctx, QuoteRequest{Usage: 15, Classification: "residential"})
	require.NoError(t, err)
	require.True(t, dec("177.5").Equal(result.Total), result.Total.String())

	result, err = svc.Quote(ctx, QuoteRequest{Usage: 1000, Classification: "residential"})
	require.NoError(t, err)
	require.False(t, result.Priced())

	_, err = svc.Quote(ctx, QuoteRequest{Usage: -5, Classification: "residential"})
	require.ErrorIs(t, err, rating.ErrInvalidInput)

	_, err = svc.Quote(ctx, QuoteRequest{Usage: 5})
	require.ErrorIs(t, err, rating.ErrInvalidInput)
}

func TestQuote_UsesCacheUntilWrite(t *testing.T) {
	repo := &countingRepo{RateRepository: memory.NewRateRepository(seedTiers()...)}
	svc, err := NewRateService(repo, WithCacheTTL(time.Minute))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Quote(ctx, QuoteRequest{Usage: 5, Classification: "residential"})
		require.NoError(t, err)
	}
	require.Equal(t, 1, repo.lists)

	_, err = svc.Create(ctx, rating.RateTier{UsageStart: 21, UsageEnd: 50, PricePerM3: dec("12"), Classification: rating.ClassificationResidential})
	require.NoError(t, err)
	listsAfterCreate := repo.lists

	result, err := svc.Quote(ctx, QuoteRequest{Usage: 30, Classification: "residential"})
	require.NoError(t, err)
	require.True(t, result.Priced())
	require.Equal(t, listsAfterCreate+1, repo.lists)
}

func TestCreate_RejectsOverlapAndInvalid(t *testing.T) {
	svc, err := NewRateService(memory.NewRateRepository(seedTiers()...))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, rating.RateTier{UsageStart: 5, UsageEnd: 12, PricePerM3: dec("1"), Classification: rating.ClassificationResidential})
	require.ErrorIs(t, err, rating.ErrOverlappingTiers)

	_, err = svc.Create(ctx, rating.RateTier{UsageStart: 5, UsageEnd: 12, PricePerM3: dec("1"), Classification: rating.ClassificationResidential, Region: "North"})
	require.ErrorIs(t, err, rating.ErrOverlappingTiers)

	_, err = svc.Create(ctx, rating.RateTier{UsageStart: 30, UsageEnd: 20, Classification: rating.ClassificationResidential})
	require.ErrorIs(t, err, rating.ErrInvalidTier)

	created, err := svc.Create(ctx, rating.RateTier{UsageStart: 0, UsageEnd: 100, PricePerM3: dec("3"), Classification: rating.ClassificationIndustrial})
	require.NoError(t, err)
	require.Equal(t, int64(5), created.ID)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, err := NewRateService(memory.NewRateRepository(seedTiers()...))
	require.NoError(t, err)
	ctx := context.Background()

	tier, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	tier.UsageEnd = 40
	tier.PricePerM3 = dec("11")
	updated, err := svc.Update(ctx, *tier)
	require.NoError(t, err)
	require.Equal(t, 40.0, updated.UsageEnd)

	tier.UsageStart = 5
	_, err = svc.Update(ctx, *tier)
	require.ErrorIs(t, err, rating.ErrOverlappingTiers)

	missing := *tier
	missing.ID = 99
	_, err = svc.Update(ctx, missing)
	require.ErrorIs(t, err, rating.ErrRateNotFound)

	require.NoError(t, svc.Delete(ctx, 2))
	require.ErrorIs(t, svc.Delete(ctx, 2), rating.ErrRateNotFound)
	_, err = svc.Get(ctx, 2)
	require.True(t, errors.Is(err, rating.ErrRateNotFound))
}

func TestImport_AllOrNothing(t *testing.T) {
	repo := memory.NewRateRepository()
	svc, err := NewRateService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.Import(ctx, seedTiers())
	require.NoError(t, err)
	require.Len(t, created, 4)

	_, err = svc.Import(ctx, []rating.RateTier{
		{UsageStart: 21, UsageEnd: 30, PricePerM3: dec("20"), Classification: rating.ClassificationResidential},
		{UsageStart: 0, UsageEnd: 3, PricePerM3: dec("20"), Classification: rating.ClassificationCommercial},
	})
	require.ErrorIs(t, err, rating.ErrOverlappingTiers)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	_, err = svc.Import(ctx, nil)
	require.ErrorIs(t, err, rating.ErrInvalidInput)
}
