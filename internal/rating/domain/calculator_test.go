package rating

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func residentialTiers() []RateTier {
	return []RateTier{
		{ID: 1, UsageStart: 0, UsageEnd: 10, PricePerM3: dec(5.0), Classification: ClassificationResidential, Tax: dec(0.15), ServiceFee: dec(5)},
		{ID: 2, UsageStart: 11, UsageEnd: 20, PricePerM3: dec(10.0), Classification: ClassificationResidential, Tax: dec(0.15), ServiceFee: dec(5)},
		{ID: 3, UsageStart: 0, UsageEnd: 10, PricePerM3: dec(7.5), Classification: ClassificationCommercial, Tax: dec(0.20), ServiceFee: dec(10)},
		{ID: 4, UsageStart: 11, UsageEnd: 20, PricePerM3: dec(15.0), Classification: ClassificationCommercial, Tax: dec(0.20), ServiceFee: dec(10)},
	}
}

func requireAmount(t *testing.T, want float64, got decimal.Decimal, label string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %v, got %s", label, want, got)
}

func TestComputeCost_FirstTier(t *testing.T) {
	result, err := ComputeCost(8, ClassificationResidential, residentialTiers())
	require.NoError(t, err)
	require.True(t, result.Priced())
	require.Equal(t, int64(1), result.Tier.ID)
	requireAmount(t, 40.0, result.Base, "base")
	requireAmount(t, 6.0, result.TaxAmount, "tax")
	requireAmount(t, 5, result.ServiceFee, "fee")
	requireAmount(t, 51.0, result.Total, "total")
}

func TestComputeCost_SecondTier(t *testing.T) {
	result, err := ComputeCost(15, ClassificationResidential, residentialTiers())
	require.NoError(t, err)
	require.True(t, result.Priced())
	require.Equal(t, int64(2), result.Tier.ID)
	requireAmount(t, 150.0, result.Base, "base")
	requireAmount(t, 22.5, result.TaxAmount, "tax")
	requireAmount(t, 5, result.ServiceFee, "fee")
	requireAmount(t, 177.5, result.Total, "total")
}

func TestComputeCost_CommercialUsesOwnTiers(t *testing.T) {
	result, err := ComputeCost(8, ClassificationCommercial, residentialTiers())
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Tier.ID)
	requireAmount(t, 60.0, result.Base, "base")
	requireAmount(t, 12.0, result.TaxAmount, "tax")
	requireAmount(t, 82.0, result.Total, "total")
}

func TestComputeCost_InvalidUsage(t *testing.T) {
	for _, usage := range []float64{-5, -0.001, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ComputeCost(usage, ClassificationResidential, residentialTiers())
		require.ErrorIsf(t, err, ErrInvalidInput, "usage %v", usage)
	}
}

func TestComputeCost_EmptyClassification(t *testing.T) {
	_, err := ComputeCost(5, "", residentialTiers())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeCost_NoTierIsUnpriced(t *testing.T) {
	result, err := ComputeCost(1000, ClassificationResidential, residentialTiers())
	require.NoError(t, err)
	require.False(t, result.Priced())
	require.Equal(t, StatusUnpriced, result.Status)
	require.Nil(t, result.Tier)
	require.True(t, result.Total.IsZero())
}

func TestComputeCost_GapBetweenTiersIsUnpriced(t *testing.T) {
	result, err := ComputeCost(10.5, ClassificationResidential, residentialTiers())
	require.NoError(t, err)
	require.False(t, result.Priced())
}

func TestComputeCost_UnknownClassificationIsUnpriced(t *testing.T) {
	result, err := ComputeCost(5, Classification("agricultural"), residentialTiers())
	require.NoError(t, err)
	require.False(t, result.Priced())
}

func TestComputeCost_InclusiveBounds(t *testing.T) {
	tiers := residentialTiers()
	for _, tc := range []struct {
		usage float64
		want  int64
	}{
		{0, 1}, {10, 1}, {11, 2}, {20, 2},
	} {
		result, err := ComputeCost(tc.usage, ClassificationResidential, tiers)
		require.NoError(t, err)
		require.Truef(t, result.Priced(), "usage %v", tc.usage)
		require.Equalf(t, tc.want, result.Tier.ID, "usage %v", tc.usage)
	}
}

func TestComputeCost_EveryUsageInRangeMatchesTier(t *testing.T) {
	tier := residentialTiers()[1]
	for u := tier.UsageStart; u <= tier.UsageEnd; u += 0.25 {
		result, err := ComputeCost(u, tier.Classification, []RateTier{tier})
		require.NoError(t, err)
		require.True(t, result.Priced())
		require.Equal(t, tier.ID, result.Tier.ID)
	}
}

func TestComputeCost_OverlapFirstMatchWins(t *testing.T) {
	tiers := []RateTier{
		{ID: 7, UsageStart: 0, UsageEnd: 15, PricePerM3: dec(1), Classification: ClassificationResidential},
		{ID: 8, UsageStart: 10, UsageEnd: 20, PricePerM3: dec(2), Classification: ClassificationResidential},
	}
	result, err := ComputeCost(12, ClassificationResidential, tiers)
	require.NoError(t, err)
	require.Equal(t, int64(7), result.Tier.ID)

	reversed := []RateTier{tiers[1], tiers[0]}
	result, err = ComputeCost(12, ClassificationResidential, reversed)
	require.NoError(t, err)
	require.Equal(t, int64(8), result.Tier.ID)
}

func TestCompute_RegionFilter(t *testing.T) {
	tiers := []RateTier{
		{ID: 1, UsageStart: 0, UsageEnd: 10, PricePerM3: dec(4), Classification: ClassificationResidential, Region: "Region B"},
		{ID: 2, UsageStart: 0, UsageEnd: 10, PricePerM3: dec(5), Classification: ClassificationResidential},
	}

	result, err := Compute(Query{Usage: 5, Classification: ClassificationResidential, Region: "region b"}, tiers)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Tier.ID)

	result, err = Compute(Query{Usage: 5, Classification: ClassificationResidential, Region: "Region A"}, tiers)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Tier.ID)

	result, err = Compute(Query{Usage: 5, Classification: ClassificationResidential}, tiers)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Tier.ID)
}

func TestComputeCost_Idempotent(t *testing.T) {
	tiers := residentialTiers()
	first, err := ComputeCost(15, ClassificationResidential, tiers)
	require.NoError(t, err)
	second, err := ComputeCost(15, ClassificationResidential, tiers)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.Tier.ID, second.Tier.ID)
	require.True(t, first.Total.Equal(second.Total))
	require.Len(t, tiers, 4)
}

func TestComputeCost_ConcurrentCalls(t *testing.T) {
	tiers := residentialTiers()
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(usage float64) {
			defer wg.Done()
			result, err := ComputeCost(usage, ClassificationResidential, tiers)
			if err != nil {
				errs <- err
				return
			}
			if !result.Priced() {
				errs <- errors.New("expected priced result")
			}
		}(float64(i % 21))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestParseUsage(t *testing.T) {
	usage, err := ParseUsage(" 12.5 ")
	require.NoError(t, err)
	require.Equal(t, 12.5, usage)

	for _, raw := range []string{"", "abc", "-5", "NaN", "Inf", "1e400"} {
		_, err := ParseUsage(raw)
		require.ErrorIsf(t, err, ErrInvalidInput, "raw %q", raw)
	}
}
