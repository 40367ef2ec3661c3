package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	monthly []UsagePoint
	from    time.Time
	to      time.Time
}

func (s *stubStore) CountCustomers(ctx context.Context) (int, error) {
	return 2, nil
}

func (s *stubStore) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	s.from, s.to = from, to
	return decimal.NewFromInt(100), nil
}

func (s *stubStore) Usage(ctx context.Context, from, to time.Time) (float64, error) {
	return 12, nil
}

func (s *stubStore) CountBills(ctx context.Context, status string) (int, error) {
	return 1, nil
}

func (s *stubStore) MonthlyUsage(ctx context.Context, from, to time.Time) ([]UsagePoint, error) {
	s.from, s.to = from, to
	return s.monthly, nil
}

func (s *stubStore) Bills(ctx context.Context, from, to time.Time) ([]BillRow, error) {
	return nil, nil
}

func fixedService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, "USD")
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardUsesCurrentMonth(t *testing.T) {
	store := &stubStore{}
	d, err := fixedService(t, store).Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-04", d.Month)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), store.from)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), store.to)
	require.Equal(t, 2, d.TotalCustomers)
	require.Equal(t, "USD", d.Currency)
}

func TestUsageChartFillsGaps(t *testing.T) {
	store := &stubStore{monthly: []UsagePoint{{Month: "2026-02", UsageM3: 7}, {Month: "2026-04", UsageM3: 3.5}}}
	points, err := fixedService(t, store).UsageChart(context.Background(), 3)
	require.NoError(t, err)
	want := []UsagePoint{
		{Month: "2026-02", UsageM3: 7},
		{Month: "2026-03", UsageM3: 0},
		{Month: "2026-04", UsageM3: 3.5},
	}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Fatalf("usage chart mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), store.from)

	_, err = fixedService(t, store).UsageChart(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestBillsRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := fixedService(t, &stubStore{}).Bills(context.Background(), now, now.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)
}
