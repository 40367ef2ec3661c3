package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	billing "waterbill/internal/billing/domain"
	"waterbill/internal/billing/export"
	"waterbill/internal/billing/infrastructure/memory"
	"waterbill/internal/eventing"
	rating "waterbill/internal/rating/domain"
)

type fakeCustomers struct{ customers []Customer }

func (f fakeCustomers) Customers(ctx context.Context, ids []int64) ([]Customer, error) {
	if len(ids) == 0 {
		return append([]Customer(nil), f.customers...), nil
	}
	var result []Customer
	for _, c := range f.customers {
		for _, id := range ids {
			if c.ID == id {
				result = append(result, c)
			}
		}
	}
	return result, nil
}

type fakeUsage map[int64]float64

func (f fakeUsage) UsageForCustomer(ctx context.Context, customerID int64, from, to time.Time) (float64, error) {
	if customerID == 99 {
		return 0, errors.New("meter store down")
	}
	return f[customerID], nil
}

type staticTiers []rating.RateTier

func (s staticTiers) Tiers(ctx context.Context) ([]rating.RateTier, error) { return s, nil }

func tiers() staticTiers {
	d := decimal.RequireFromString
	return staticTiers{
		{ID: 1, UsageStart: 0, UsageEnd: 10, PricePerM3: d("5"), Classification: rating.ClassificationResidential, Tax: d("0.15"), ServiceFee: d("5")},
		{ID: 2, UsageStart: 11, UsageEnd: 20, PricePerM3: d("10"), Classification: rating.ClassificationResidential, Tax: d("0.15"), ServiceFee: d("5")},
		{ID: 3, UsageStart: 0, UsageEnd: 10, PricePerM3: d("7.5"), Classification: rating.ClassificationCommercial, Tax: d("0.20"), ServiceFee: d("10")},
	}
}

var (
	march = billing.MonthPeriod(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	now   = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
)

type recordingBus struct {
	mu     sync.Mutex
	events []billing.BillGenerated
}

func (b *recordingBus) Publish(ctx context.Context, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := event.(billing.BillGenerated); ok {
		b.events = append(b.events, e)
	}
	return nil
}

var _ eventing.Publisher = (*recordingBus)(nil)

func newService(t *testing.T, customers []Customer, usage fakeUsage) (*BillService, *memory.BillRepository, *recordingBus) {
	t.Helper()
	repo := memory.NewBillRepository()
	bus := &recordingBus{}
	svc, err := NewBillService(repo, fakeCustomers{customers: customers}, usage, tiers(),
		WithWorkers(2),
		WithDueDays(10),
		WithCurrency("KES"),
		WithPublisher(bus),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return svc, repo, bus
}

func TestGenerate(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Ada", Classification: rating.ClassificationResidential},
		{ID: 2, Name: "Shop", Classification: rating.ClassificationCommercial},
		{ID: 3, Name: "Heavy", Classification: rating.ClassificationResidential},
		{ID: 4, Name: "Farm", Classification: rating.Classification("agricultural")},
		{ID: 5, Name: "Idle", Classification: rating.ClassificationResidential},
		{ID: 99, Name: "Broken", Classification: rating.ClassificationResidential},
	}
	usage := fakeUsage{1: 8, 2: 8, 3: 500, 4: 5, 5: 0}
	svc, _, bus := newService(t, customers, usage)

	result, err := svc.Generate(context.Background(), GenerateRequest{PeriodStart: march.Start, PeriodEnd: march.End})
	require.NoError(t, err)

	require.Len(t, result.Generated, 3)
	require.Equal(t, int64(1), result.Generated[0].CustomerID)
	require.Equal(t, "51", result.Generated[0].TotalAmount.String())
	require.Equal(t, "82", result.Generated[1].TotalAmount.String())
	require.Equal(t, "5", result.Generated[2].TotalAmount.String(), "zero usage pays the service fee")
	require.Equal(t, "KES", result.Generated[0].Currency)
	require.Equal(t, now.AddDate(0, 0, 10), result.Generated[0].DueDate)

	require.Equal(t, []Skipped{
		{CustomerID: 3, Reason: SkipNoRate, UsageM3: 500},
		{CustomerID: 4, Reason: SkipNoRate, UsageM3: 5},
	}, result.Skipped)
	require.Len(t, result.Failed, 1)
	require.Equal(t, int64(99), result.Failed[0].CustomerID)

	require.Len(t, bus.events, 3)

	again, err := svc.Generate(context.Background(), GenerateRequest{CustomerIDs: []int64{1}, PeriodStart: march.Start, PeriodEnd: march.End})
	require.NoError(t, err)
	require.Empty(t, again.Generated)
	require.Len(t, again.Skipped, 1)
	require.Equal(t, SkipAlreadyBilled, again.Skipped[0].Reason)
	require.Equal(t, result.Generated[0].ID, again.Skipped[0].BillID)
}

func TestGenerate_ReportsUnknownAndClosedRequests(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Ada", Classification: rating.ClassificationResidential},
		{ID: 2, Name: "Gone", Classification: rating.ClassificationResidential, Closed: true},
	}
	svc, _, _ := newService(t, customers, fakeUsage{1: 8, 2: 8})

	result, err := svc.Generate(context.Background(), GenerateRequest{
		CustomerIDs: []int64{404, 2, 1, 404},
		PeriodStart: march.Start,
		PeriodEnd:   march.End,
	})
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)
	require.Equal(t, int64(1), result.Generated[0].CustomerID)
	require.Equal(t, []Skipped{
		{CustomerID: 2, Reason: SkipClosed},
		{CustomerID: 404, Reason: SkipNotFound},
	}, result.Skipped)

	all, err := svc.Generate(context.Background(), GenerateRequest{PeriodStart: march.Start, PeriodEnd: march.End})
	require.NoError(t, err)
	require.Empty(t, all.Generated)
	require.Equal(t, []Skipped{{CustomerID: 1, Reason: SkipAlreadyBilled, UsageM3: 8, BillID: result.Generated[0].ID}}, all.Skipped)
}

func TestGenerate_DefaultCurrency(t *testing.T) {
	svc, err := NewBillService(memory.NewBillRepository(), fakeCustomers{}, fakeUsage{}, tiers())
	require.NoError(t, err)
	require.Equal(t, "GHS", svc.Currency())
}

func TestGenerate_InvalidPeriod(t *testing.T) {
	svc, _, _ := newService(t, nil, fakeUsage{})
	_, err := svc.Generate(context.Background(), GenerateRequest{PeriodStart: march.End, PeriodEnd: march.Start})
	require.ErrorIs(t, err, billing.ErrInvalidPeriod)
}

func TestGenerate_RegionalTier(t *testing.T) {
	repo := memory.NewBillRepository()
	d := decimal.RequireFromString
	regional := append(tiers(), rating.RateTier{ID: 9, UsageStart: 0, UsageEnd: 10, PricePerM3: d("1"), Classification: rating.ClassificationIndustrial, Region: "Harbor"})
	svc, err := NewBillService(repo,
		fakeCustomers{customers: []Customer{
			{ID: 1, Name: "Dock", Classification: rating.ClassificationIndustrial, Region: "harbor"},
			{ID: 2, Name: "Inland", Classification: rating.ClassificationIndustrial, Region: "Valley"},
		}},
		fakeUsage{1: 4, 2: 4}, regional)
	require.NoError(t, err)

	result, err := svc.Generate(context.Background(), GenerateRequest{PeriodStart: march.Start, PeriodEnd: march.End})
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)
	require.Equal(t, int64(9), *result.Generated[0].RateID)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, int64(2), result.Skipped[0].CustomerID)
}

func TestVoidMarkOverdueAndExport(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Ada", Classification: rating.ClassificationResidential},
		{ID: 2, Name: "Ben", Classification: rating.ClassificationResidential},
	}
	svc, repo, _ := newService(t, customers, fakeUsage{1: 8, 2: 12})
	ctx := context.Background()
	result, err := svc.Generate(ctx, GenerateRequest{PeriodStart: march.Start, PeriodEnd: march.End, BillDate: march.End})
	require.NoError(t, err)
	require.Len(t, result.Generated, 2)
	first, second := result.Generated[0], result.Generated[1]

	voided, err := svc.Void(ctx, first.ID, "estimated read")
	require.NoError(t, err)
	require.Equal(t, billing.StatusVoid, voided.Status)
	_, err = svc.Void(ctx, first.ID, "again")
	require.ErrorIs(t, err, billing.ErrBillClosed)
	_, err = svc.Void(ctx, 404, "")
	require.ErrorIs(t, err, billing.ErrBillNotFound)

	count, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	svc.now = func() time.Time { return second.DueDate.Add(time.Hour) }
	count, err = svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	overdue, err := svc.List(ctx, billing.Filter{Status: billing.StatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, second.ID, overdue[0].ID)

	doc, err := svc.Export(ctx, second.ID, export.FormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", doc.ContentType)
	require.NotEmpty(t, doc.Body)
	_, err = svc.Export(ctx, second.ID, "docx")
	require.ErrorIs(t, err, export.ErrUnsupportedFormat)
	require.Len(t, repo.Exports(), 1)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, billing.ErrBillNotFound)
}
