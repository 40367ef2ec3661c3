package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	billing "waterbill/internal/billing/domain"
	"waterbill/internal/billing/export"
	"waterbill/internal/eventing"
	"waterbill/internal/observability/metrics"
	rating "waterbill/internal/rating/domain"
)

// Skip reasons reported by Generate.
const (
	SkipNoRate        = "no_rate"
	SkipAlreadyBilled = "already_billed"
	SkipNotFound      = "not_found"
	SkipClosed        = "closed"
)

const (
	defaultWorkers  = 4
	defaultDueDays  = 14
	defaultCurrency = "GHS"
)

// Customer is the billing view of a customer.
type Customer struct {
	ID             int64
	Name           string
	Classification rating.Classification
	Region         string
	Closed         bool
}

// CustomerSource lists customers, closed accounts included. Empty ids
// selects all of them; unknown ids are left out of the result.
type CustomerSource interface {
	Customers(ctx context.Context, ids []int64) ([]Customer, error)
}

// UsageReader sums metered usage for a customer in [from, to).
type UsageReader interface {
	UsageForCustomer(ctx context.Context, customerID int64, from, to time.Time) (float64, error)
}

// TierSource returns the current rate table.
type TierSource interface {
	Tiers(ctx context.Context) ([]rating.RateTier, error)
}

// GenerateRequest selects customers and the billing period.
type GenerateRequest struct {
	CustomerIDs []int64   `json:"customer_ids"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	BillDate    time.Time `json:"bill_date"`
}

// Skipped names a customer that was not billed.
type Skipped struct {
	CustomerID int64   `json:"customer_id"`
	Reason     string  `json:"reason"`
	UsageM3    float64 `json:"usage_m3"`
	BillID     int64   `json:"bill_id,omitempty"`
}

// Failure names a customer whose bill could not be issued.
type Failure struct {
	CustomerID int64  `json:"customer_id"`
	Error      string `json:"error"`
}

// GenerateResult reports the outcome per customer, ordered by customer id.
type GenerateResult struct {
	Generated []billing.Bill `json:"generated"`
	Skipped   []Skipped      `json:"skipped"`
	Failed    []Failure      `json:"failed"`
}

// Option configures the bill service.
type Option func(*BillService)

// WithWorkers bounds concurrent customers during generation.
func WithWorkers(n int) Option {
	return func(s *BillService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDueDays sets the days between bill date and due date.
func WithDueDays(days int) Option {
	return func(s *BillService) {
		if days >= 0 {
			s.dueDays = days
		}
	}
}

// WithCurrency sets the bill currency.
func WithCurrency(currency string) Option {
	return func(s *BillService) {
		if currency = strings.TrimSpace(currency); currency != "" {
			s.currency = currency
		}
	}
}

// WithPublisher publishes BillGenerated events.
func WithPublisher(publisher eventing.Publisher) Option {
	return func(s *BillService) { s.publisher = publisher }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *BillService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *BillService) {
		if now != nil {
			s.now = now
		}
	}
}

// BillService issues and manages bills.
type BillService struct {
	repo      billing.Repository
	customers CustomerSource
	usage     UsageReader
	tiers     TierSource
	publisher eventing.Publisher
	logger    *zap.Logger
	now       func() time.Time
	workers   int
	dueDays   int
	currency  string
}

// NewBillService constructs a bill service.
func NewBillService(repo billing.Repository, customers CustomerSource, usage UsageReader, tiers TierSource, opts ...Option) (*BillService, error) {
	if repo == nil {
		return nil, errors.New("bill service: nil repo")
	}
	if customers == nil {
		return nil, errors.New("bill service: nil customer source")
	}
	if usage == nil {
		return nil, errors.New("bill service: nil usage reader")
	}
	if tiers == nil {
		return nil, errors.New("bill service: nil tier source")
	}
	s := &BillService{
		repo:      repo,
		customers: customers,
		usage:     usage,
		tiers:     tiers,
		logger:    zap.NewNop(),
		now:       time.Now,
		workers:   defaultWorkers,
		dueDays:   defaultDueDays,
		currency:  defaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Currency returns the bill currency.
func (s *BillService) Currency() string { return s.currency }

type outcome struct {
	bill    *billing.Bill
	skipped *Skipped
	failure *Failure
}

// Generate bills every selected customer for the period. Customers without a
// covering tier are skipped, never billed at zero.
func (s *BillService) Generate(ctx context.Context, req GenerateRequest) (result GenerateResult, err error) {
	start := time.Now()
	defer func() {
		status := metrics.ResultSuccess
		if err != nil {
			status = metrics.ResultError
		}
		metrics.ObserveBillGenerate(status, time.Since(start))
	}()

	period := billing.Period{Start: req.PeriodStart.UTC(), End: req.PeriodEnd.UTC()}
	if err := period.Validate(); err != nil {
		return GenerateResult{}, err
	}
	billDate := req.BillDate
	if billDate.IsZero() {
		billDate = s.now()
	}

	tiers, err := s.tiers.Tiers(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load rate tiers: %w", err)
	}
	listed, err := s.customers.Customers(ctx, req.CustomerIDs)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load customers: %w", err)
	}
	customers, unbillable := selectBillable(listed, req.CustomerIDs)

	outcomes := make([]outcome, len(customers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, customer := range customers {
		i, customer := i, customer
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.billCustomer(gctx, customer, period, billDate, tiers)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GenerateResult{}, err
	}

	result = GenerateResult{Generated: []billing.Bill{}, Skipped: []Skipped{}, Failed: []Failure{}}
	for _, skip := range unbillable {
		skip := skip
		outcomes = append(outcomes, outcome{skipped: &skip})
	}
	for _, o := range outcomes {
		switch {
		case o.bill != nil:
			result.Generated = append(result.Generated, *o.bill)
		case o.skipped != nil:
			result.Skipped = append(result.Skipped, *o.skipped)
			metrics.IncBillSkipped(o.skipped.Reason)
		case o.failure != nil:
			result.Failed = append(result.Failed, *o.failure)
		}
	}
	sort.SliceStable(result.Skipped, func(i, j int) bool { return result.Skipped[i].CustomerID < result.Skipped[j].CustomerID })
	s.logger.Info("bill generation finished",
		zap.Time("period_start", period.Start),
		zap.Time("period_end", period.End),
		zap.Int("generated", len(result.Generated)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// selectBillable drops closed accounts, sorted by id. Explicitly requested ids
// that are closed or unknown come back as skips; an all-customer run leaves
// closed accounts out silently.
func selectBillable(listed []Customer, requested []int64) ([]Customer, []Skipped) {
	byID := lo.KeyBy(listed, func(c Customer) int64 { return c.ID })
	billable := lo.Filter(listed, func(c Customer, _ int) bool { return !c.Closed })
	sort.Slice(billable, func(i, j int) bool { return billable[i].ID < billable[j].ID })

	var skipped []Skipped
	for _, id := range lo.Uniq(requested) {
		customer, ok := byID[id]
		switch {
		case !ok:
			skipped = append(skipped, Skipped{CustomerID: id, Reason: SkipNotFound})
		case customer.Closed:
			skipped = append(skipped, Skipped{CustomerID: id, Reason: SkipClosed})
		}
	}
	return billable, skipped
}

func (s *BillService) billCustomer(ctx context.Context, customer Customer, period billing.Period, billDate time.Time, tiers []rating.RateTier) outcome {
	fail := func(err error) outcome {
		s.logger.Warn("bill generation failed", zap.Int64("customer_id", customer.ID), zap.Error(err))
		return outcome{failure: &Failure{CustomerID: customer.ID, Error: err.Error()}}
	}

	existing, err := s.repo.FindByPeriod(ctx, customer.ID, period)
	if err != nil {
		return fail(err)
	}
	if existing != nil {
		return outcome{skipped: &Skipped{CustomerID: customer.ID, Reason: SkipAlreadyBilled, UsageM3: existing.UsageM3, BillID: existing.ID}}
	}

	usage, err := s.usage.UsageForCustomer(ctx, customer.ID, period.Start, period.End)
	if err != nil {
		return fail(err)
	}
	cost, err := rating.Compute(rating.Query{Usage: usage, Classification: customer.Classification, Region: customer.Region}, tiers)
	if err != nil {
		return fail(err)
	}
	if !cost.Priced() {
		s.logger.Info("customer skipped without covering tier",
			zap.Int64("customer_id", customer.ID),
			zap.Float64("usage_m3", usage),
			zap.String("customer_type", customer.Classification.String()),
		)
		return outcome{skipped: &Skipped{CustomerID: customer.ID, Reason: SkipNoRate, UsageM3: usage}}
	}

	bill, err := billing.NewBill(billing.Draft{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Period:       period,
		BillDate:     billDate,
		DueDays:      s.dueDays,
		Currency:     s.currency,
		Cost:         cost,
	})
	if err != nil {
		return fail(err)
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		if errors.Is(err, billing.ErrAlreadyBilled) {
			return outcome{skipped: &Skipped{CustomerID: customer.ID, Reason: SkipAlreadyBilled, UsageM3: usage}}
		}
		return fail(err)
	}
	s.publishGenerated(ctx, bill)
	return outcome{bill: bill}
}

func (s *BillService) publishGenerated(ctx context.Context, bill *billing.Bill) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, billing.BillGenerated{
		BillID:       bill.ID,
		CustomerID:   bill.CustomerID,
		CustomerName: bill.CustomerName,
		PeriodStart:  bill.PeriodStart,
		PeriodEnd:    bill.PeriodEnd,
		UsageM3:      bill.UsageM3,
		Total:        bill.TotalAmount,
		Currency:     bill.Currency,
		DueDate:      bill.DueDate,
		OccurredAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publish bill generated failed", zap.Int64("bill_id", bill.ID), zap.Error(err))
	}
}

// Get loads a bill with its items.
func (s *BillService) Get(ctx context.Context, id int64) (*billing.Bill, error) {
	bill, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	return bill, nil
}

// List returns bills matching filter, newest first.
func (s *BillService) List(ctx context.Context, filter billing.Filter) ([]billing.Bill, error) {
	return s.repo.List(ctx, filter)
}

// Void cancels an unpaid bill.
func (s *BillService) Void(ctx context.Context, id int64, reason string) (*billing.Bill, error) {
	bill, err := s.repo.Update(ctx, id, func(b *billing.Bill) error {
		return b.Void(reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bill voided", zap.Int64("bill_id", id), zap.String("reason", bill.VoidReason))
	return bill, nil
}

// MarkOverdue moves past-due open bills to overdue and returns how many moved.
func (s *BillService) MarkOverdue(ctx context.Context) (int, error) {
	count, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.AddBillsOverdue(count)
	if count > 0 {
		s.logger.Info("bills marked overdue", zap.Int("count", count))
	}
	return count, nil
}

// RunOverdueSweep calls MarkOverdue every interval until ctx is done.
func (s *BillService) RunOverdueSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.MarkOverdue(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("overdue sweep failed", zap.Error(err))
			}
		}
	}
}

// Document is a rendered bill.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export renders a bill as pdf or xlsx and records the export.
func (s *BillService) Export(ctx context.Context, id int64, format string) (doc Document, err error) {
	start := time.Now()
	defer func() {
		status := metrics.ResultSuccess
		if err != nil {
			status = metrics.ResultError
		}
		metrics.ObserveBillExport(format, status, time.Since(start))
	}()

	bill, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	var body []byte
	switch format {
	case export.FormatPDF:
		body, err = export.BuildBillPDF(bill)
		doc.ContentType = "application/pdf"
	case export.FormatXLSX:
		body, err = export.BuildBillXLSX(bill)
		doc.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return Document{}, fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Document{}, err
	}
	doc.Body = body
	doc.Filename = fmt.Sprintf("bill-%d.%s", bill.ID, format)

	if err := s.repo.RecordExport(ctx, billing.Export{
		ID:        "export-" + uuid.NewString(),
		BillID:    bill.ID,
		Format:    format,
		Status:    "completed",
		CreatedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("record bill export failed", zap.Int64("bill_id", bill.ID), zap.Error(err))
	}
	return doc, nil
}
