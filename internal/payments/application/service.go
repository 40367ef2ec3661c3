package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "waterbill/internal/billing/domain"
	"waterbill/internal/eventing"
	"waterbill/internal/observability/metrics"
	payments "waterbill/internal/payments/domain"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 200
)

// RecordRequest names the bill, amount and method of a payment. Method may be
// given by id or by name.
type RecordRequest struct {
	BillID      int64           `json:"bill_id"`
	CustomerID  int64           `json:"customer_id"`
	MethodID    int64           `json:"payment_method_id"`
	Method      string          `json:"payment_method"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
}

// PaymentService records payments against bills.
type PaymentService struct {
	repo      payments.Repository
	publisher eventing.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs a payment service. publisher may be nil.
func NewPaymentService(repo payments.Repository, publisher eventing.Publisher, logger *zap.Logger) (*PaymentService, error) {
	if repo == nil {
		return nil, errors.New("payment service: nil repo")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, publisher: publisher, logger: logger, now: time.Now}, nil
}

// Record stores a completed payment and settles it against the bill.
func (s *PaymentService) Record(ctx context.Context, req RecordRequest) (payment *payments.Payment, bill *billing.Bill, err error) {
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.IncPaymentRecord(result)
	}()

	if req.BillID <= 0 {
		return nil, nil, fmt.Errorf("%w: bill_id is required", payments.ErrInvalidPayment)
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be > 0", payments.ErrInvalidPayment)
	}
	method, err := s.resolveMethod(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	now := s.now().UTC()

	payment = &payments.Payment{
		BillID:      req.BillID,
		CustomerID:  req.CustomerID,
		MethodID:    method.ID,
		Method:      method.Name,
		PaymentDate: paidAt.UTC(),
		Amount:      amount,
		Status:      payments.StatusCompleted,
		CreatedAt:   now,
	}
	bill, err = s.repo.Record(ctx, payment, func(b *billing.Bill) error {
		if req.CustomerID > 0 && b.CustomerID != req.CustomerID {
			return fmt.Errorf("%w: bill %d", billing.ErrCustomerMismatch, b.ID)
		}
		payment.CustomerID = b.CustomerID
		return b.ApplyPayment(amount, now)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("bill_id", bill.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("bill_status", string(bill.Status)),
	)
	s.publish(ctx, payment, bill)
	return payment, bill, nil
}

func (s *PaymentService) publish(ctx context.Context, payment *payments.Payment, bill *billing.Bill) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, payments.PaymentRecorded{
		PaymentID:   payment.ID,
		BillID:      bill.ID,
		CustomerID:  bill.CustomerID,
		Amount:      payment.Amount,
		Method:      payment.Method,
		BillStatus:  bill.Status,
		Balance:     bill.Balance(),
		Currency:    bill.Currency,
		PaymentDate: payment.PaymentDate,
		OccurredAt:  s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publish payment recorded failed", zap.Int64("payment_id", payment.ID), zap.Error(err))
	}
}

func (s *PaymentService) resolveMethod(ctx context.Context, req RecordRequest) (payments.Method, error) {
	methods, err := s.repo.Methods(ctx)
	if err != nil {
		return payments.Method{}, err
	}
	name := strings.ToLower(strings.TrimSpace(req.Method))
	method, ok := lo.Find(methods, func(m payments.Method) bool {
		if req.MethodID > 0 {
			return m.ID == req.MethodID
		}
		return m.Name == name
	})
	if !ok {
		if req.MethodID == 0 && name == "" {
			return payments.Method{}, fmt.Errorf("%w: payment method is required", payments.ErrInvalidPayment)
		}
		return payments.Method{}, payments.ErrUnknownMethod
	}
	return method, nil
}

// History lists a customer's payments, newest first.
func (s *PaymentService) History(ctx context.Context, customerID int64) ([]payments.Payment, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer_id is required", payments.ErrInvalidPayment)
	}
	return s.repo.ListByCustomer(ctx, customerID)
}

// Recent lists the latest payments across customers.
func (s *PaymentService) Recent(ctx context.Context, limit int) ([]payments.Payment, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.Recent(ctx, limit)
}

// Methods lists payment methods.
func (s *PaymentService) Methods(ctx context.Context) ([]payments.Method, error) {
	return s.repo.Methods(ctx)
}
