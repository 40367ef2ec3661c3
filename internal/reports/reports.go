package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned for empty or inverted report ranges.
var ErrInvalidRange = errors.New("reports: invalid range")

// Dashboard is the headline figures for the current month.
type Dashboard struct {
	Month          string          `json:"month"`
	TotalCustomers int             `json:"total_customers"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
	MonthlyUsageM3 float64         `json:"monthly_usage_m3"`
	PendingBills   int             `json:"pending_bills"`
	OverdueBills   int             `json:"overdue_bills"`
	Currency       string          `json:"currency,omitempty"`
}

// UsagePoint is total metered usage for one calendar month.
type UsagePoint struct {
	Month   string  `json:"month"`
	UsageM3 float64 `json:"usage_m3"`
}

// BillRow is one line of a bills export.
type BillRow struct {
	BillID       int64
	CustomerID   int64
	CustomerName string
	BillDate     time.Time
	DueDate      time.Time
	PeriodStart  time.Time
	PeriodEnd    time.Time
	UsageM3      float64
	TotalAmount  decimal.Decimal
	PaidAmount   decimal.Decimal
	Currency     string
	Status       string
}

// Store runs report queries.
type Store interface {
	CountCustomers(ctx context.Context) (int, error)
	Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	Usage(ctx context.Context, from, to time.Time) (float64, error)
	CountBills(ctx context.Context, status string) (int, error)
	MonthlyUsage(ctx context.Context, from, to time.Time) ([]UsagePoint, error)
	Bills(ctx context.Context, from, to time.Time) ([]BillRow, error)
}

// Service assembles reports.
type Service struct {
	store    Store
	currency string
	now      func() time.Time
}

// NewService constructs a report service.
func NewService(store Store, currency string) (*Service, error) {
	if store == nil {
		return nil, errors.New("report service: nil store")
	}
	return &Service{store: store, currency: currency, now: time.Now}, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Dashboard returns current-month figures. Revenue counts payments dated in
// the month; usage counts readings dated in the month.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	from := monthStart(s.now())
	to := from.AddDate(0, 1, 0)

	customers, err := s.store.CountCustomers(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count customers: %w", err)
	}
	revenue, err := s.store.Revenue(ctx, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("revenue: %w", err)
	}
	usage, err := s.store.Usage(ctx, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("usage: %w", err)
	}
	pending, err := s.store.CountBills(ctx, "pending")
	if err != nil {
		return Dashboard{}, fmt.Errorf("pending bills: %w", err)
	}
	overdue, err := s.store.CountBills(ctx, "overdue")
	if err != nil {
		return Dashboard{}, fmt.Errorf("overdue bills: %w", err)
	}
	return Dashboard{
		Month:          from.Format("2006-01"),
		TotalCustomers: customers,
		MonthlyRevenue: revenue,
		MonthlyUsageM3: usage,
		PendingBills:   pending,
		OverdueBills:   overdue,
		Currency:       s.currency,
	}, nil
}

// UsageChart returns monthly usage for the last months, oldest first. Months
// without readings are reported as zero.
func (s *Service) UsageChart(ctx context.Context, months int) ([]UsagePoint, error) {
	if months <= 0 || months > 60 {
		return nil, fmt.Errorf("%w: months must be between 1 and 60", ErrInvalidRange)
	}
	to := monthStart(s.now()).AddDate(0, 1, 0)
	from := to.AddDate(0, -months, 0)
	points, err := s.store.MonthlyUsage(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[string]float64, len(points))
	for _, p := range points {
		byMonth[p.Month] += p.UsageM3
	}
	result := make([]UsagePoint, 0, months)
	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		result = append(result, UsagePoint{Month: key, UsageM3: byMonth[key]})
	}
	return result, nil
}

// Bills returns bills dated in [from, to).
func (s *Service) Bills(ctx context.Context, from, to time.Time) ([]BillRow, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, fmt.Errorf("%w: to must be after from", ErrInvalidRange)
	}
	return s.store.Bills(ctx, from.UTC(), to.UTC())
}
