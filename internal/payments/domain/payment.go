package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	billing "waterbill/internal/billing/domain"
)

var (
	// ErrInvalidPayment is returned for malformed payment requests.
	ErrInvalidPayment = errors.New("payments: invalid payment")
	// ErrUnknownMethod is returned when the payment method does not exist.
	ErrUnknownMethod = errors.New("payments: unknown payment method")
)

// StatusCompleted is the status of a recorded payment.
const StatusCompleted = "completed"

// Payment is money received against a bill.
type Payment struct {
	ID          int64           `json:"payment_id"`
	BillID      int64           `json:"bill_id"`
	CustomerID  int64           `json:"customer_id"`
	MethodID    int64           `json:"payment_method_id"`
	Method      string          `json:"payment_method"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"payment_status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Method is a payment method lookup row.
type Method struct {
	ID   int64  `json:"payment_method_id"`
	Name string `json:"name"`
}

// PaymentRecorded is published after a payment is stored.
type PaymentRecorded struct {
	PaymentID   int64
	BillID      int64
	CustomerID  int64
	Amount      decimal.Decimal
	Method      string
	BillStatus  billing.Status
	Balance     decimal.Decimal
	Currency    string
	PaymentDate time.Time
	OccurredAt  time.Time
}

// Repository persists payments.
type Repository interface {
	// Record locks the bill, runs apply on it and stores the payment with the
	// updated bill atomically.
	Record(ctx context.Context, payment *Payment, apply func(*billing.Bill) error) (*billing.Bill, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Payment, error)
	Recent(ctx context.Context, limit int) ([]Payment, error)
	Methods(ctx context.Context) ([]Method, error)
}
