package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	rating "waterbill/internal/rating/domain"
)

// Status is the bill lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusVoid          Status = "void"
)

// ParseStatus validates a status filter value.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusPending, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusVoid:
		return s, true
	}
	return "", false
}

// Open reports whether the bill still accepts payments.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusPartiallyPaid || s == StatusOverdue
}

// Bill is a customer's charge for one billing period.
type Bill struct {
	ID           int64           `json:"bill_id"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	BillDate     time.Time       `json:"bill_date"`
	DueDate      time.Time       `json:"due_date"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	UsageM3      float64         `json:"usage_m3"`
	RateID       *int64          `json:"rate_id,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Currency     string          `json:"currency"`
	Status       Status          `json:"status"`
	VoidReason   string          `json:"void_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Items        []BillItem      `json:"items,omitempty"`
}

// BillItem is one line of a bill.
type BillItem struct {
	ID          int64           `json:"bill_item_id"`
	BillID      int64           `json:"bill_id"`
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Period is a half-open [Start, End) billing interval.
type Period struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty and inverted periods.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: period_start and period_end are required", ErrInvalidPeriod)
	}
	if !p.Start.Before(p.End) {
		return fmt.Errorf("%w: period_start must be before period_end", ErrInvalidPeriod)
	}
	return nil
}

// MonthPeriod returns the calendar month containing t, in UTC.
func MonthPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Draft carries what is needed to issue a bill.
type Draft struct {
	CustomerID   int64
	CustomerName string
	Period       Period
	BillDate     time.Time
	DueDays      int
	Currency     string
	Cost         rating.CostResult
}

// NewBill issues a pending bill from a priced cost result. Items are rounded
// to cents and the total is their sum.
func NewBill(d Draft) (*Bill, error) {
	if d.CustomerID <= 0 {
		return nil, fmt.Errorf("billing: customer id is required")
	}
	if err := d.Period.Validate(); err != nil {
		return nil, err
	}
	if !d.Cost.Priced() {
		return nil, fmt.Errorf("%w: %g m3 for %s", ErrUnpriced, d.Cost.Usage, d.Cost.Classification)
	}
	if d.BillDate.IsZero() {
		return nil, fmt.Errorf("billing: bill date is required")
	}
	if d.DueDays < 0 {
		d.DueDays = 0
	}

	tier := d.Cost.Tier
	items := []BillItem{
		{
			Description: fmt.Sprintf("Water usage (%s, %g-%g m3)", tier.Classification, tier.UsageStart, tier.UsageEnd),
			Quantity:    d.Cost.Usage,
			UnitPrice:   tier.PricePerM3,
			Amount:      d.Cost.Base.Round(2),
		},
		{
			Description: "Tax",
			Quantity:    1,
			UnitPrice:   tier.Tax,
			Amount:      d.Cost.TaxAmount.Round(2),
		},
		{
			Description: "Service fee",
			Quantity:    1,
			UnitPrice:   d.Cost.ServiceFee,
			Amount:      d.Cost.ServiceFee.Round(2),
		},
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}

	billDate := d.BillDate.UTC()
	rateID := tier.ID
	return &Bill{
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		BillDate:     billDate,
		DueDate:      billDate.AddDate(0, 0, d.DueDays),
		PeriodStart:  d.Period.Start.UTC(),
		PeriodEnd:    d.Period.End.UTC(),
		UsageM3:      d.Cost.Usage,
		RateID:       &rateID,
		TotalAmount:  total,
		PaidAmount:   decimal.Zero,
		Currency:     d.Currency,
		Status:       StatusPending,
		CreatedAt:    billDate,
		UpdatedAt:    billDate,
		Items:        items,
	}, nil
}

// Balance is the amount still owed.
func (b *Bill) Balance() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount)
}

// ApplyPayment adds amount to the paid total and recomputes the status.
// A payment may not exceed the balance.
func (b *Bill) ApplyPayment(amount decimal.Decimal, at time.Time) error {
	if !b.Status.Open() {
		return fmt.Errorf("%w: bill %d is %s", ErrBillClosed, b.ID, b.Status)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidPayment)
	}
	if amount.GreaterThan(b.Balance()) {
		return fmt.Errorf("%w: amount %s exceeds balance %s", ErrInvalidPayment, amount.StringFixed(2), b.Balance().StringFixed(2))
	}
	b.PaidAmount = b.PaidAmount.Add(amount)
	if b.PaidAmount.GreaterThanOrEqual(b.TotalAmount) {
		b.Status = StatusPaid
	} else {
		b.Status = StatusPartiallyPaid
	}
	b.UpdatedAt = at.UTC()
	return nil
}

// Void cancels an unpaid bill.
func (b *Bill) Void(reason string, at time.Time) error {
	if !b.Status.Open() {
		return fmt.Errorf("%w: bill %d is %s", ErrBillClosed, b.ID, b.Status)
	}
	if b.PaidAmount.IsPositive() {
		return fmt.Errorf("%w: bill %d has payments", ErrBillClosed, b.ID)
	}
	b.Status = StatusVoid
	b.VoidReason = strings.TrimSpace(reason)
	b.UpdatedAt = at.UTC()
	return nil
}

// Overdue reports whether an open unpaid bill is past due at now.
func (b *Bill) Overdue(now time.Time) bool {
	return (b.Status == StatusPending || b.Status == StatusPartiallyPaid) && b.DueDate.Before(now)
}
