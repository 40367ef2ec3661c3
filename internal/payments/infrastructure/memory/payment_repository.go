package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	billing "waterbill/internal/billing/domain"
	payments "waterbill/internal/payments/domain"
)

// BillUpdater applies a locked change to a bill.
type BillUpdater interface {
	Update(ctx context.Context, id int64, fn func(*billing.Bill) error) (*billing.Bill, error)
}

// PaymentRepository keeps payments in memory and settles them through bills.
type PaymentRepository struct {
	mu       sync.RWMutex
	bills    BillUpdater
	nextID   int64
	payments []payments.Payment
	methods  []payments.Method
}

// NewPaymentRepository constructs a repository with the default methods.
func NewPaymentRepository(bills BillUpdater) *PaymentRepository {
	return &PaymentRepository{
		bills: bills,
		methods: []payments.Method{
			{ID: 1, Name: "cash"}, {ID: 2, Name: "card"}, {ID: 3, Name: "bank_transfer"}, {ID: 4, Name: "mobile_money"},
		},
	}
}

// Record applies the payment to the bill and stores it.
func (r *PaymentRepository) Record(ctx context.Context, payment *payments.Payment, apply func(*billing.Bill) error) (*billing.Bill, error) {
	if r.bills == nil {
		return nil, errors.New("payment repo: nil bill store")
	}
	return r.bills.Update(ctx, payment.BillID, func(bill *billing.Bill) error {
		if err := apply(bill); err != nil {
			return err
		}
		r.mu.Lock()
		r.nextID++
		payment.ID = r.nextID
		r.payments = append(r.payments, *payment)
		r.mu.Unlock()
		return nil
	})
}

// ListByCustomer returns a customer's payments newest first.
func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID int64) ([]payments.Payment, error) {
	_ = ctx
	r.mu.RLock()
	var result []payments.Payment
	for _, p := range r.payments {
		if p.CustomerID == customerID {
			result = append(result, p)
		}
	}
	r.mu.RUnlock()
	sortNewest(result)
	return result, nil
}

// Recent returns the latest payments.
func (r *PaymentRepository) Recent(ctx context.Context, limit int) ([]payments.Payment, error) {
	_ = ctx
	r.mu.RLock()
	result := append([]payments.Payment(nil), r.payments...)
	r.mu.RUnlock()
	sortNewest(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Methods lists payment methods.
func (r *PaymentRepository) Methods(ctx context.Context) ([]payments.Method, error) {
	_ = ctx
	return append([]payments.Method(nil), r.methods...), nil
}

func sortNewest(list []payments.Payment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].PaymentDate.Equal(list[j].PaymentDate) {
			return list[i].PaymentDate.After(list[j].PaymentDate)
		}
		return list[i].ID > list[j].ID
	})
}
