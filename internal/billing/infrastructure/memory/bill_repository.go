package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "waterbill/internal/billing/domain"
)

// BillRepository keeps bills in memory.
type BillRepository struct {
	mu      sync.Mutex
	nextID  int64
	itemID  int64
	bills   map[int64]billing.Bill
	exports []billing.Export
}

// NewBillRepository constructs an empty repository.
func NewBillRepository() *BillRepository {
	return &BillRepository{bills: make(map[int64]billing.Bill)}
}

// Create stores a bill and its items.
func (r *BillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bills {
		if existing.CustomerID == bill.CustomerID &&
			existing.PeriodStart.Equal(bill.PeriodStart) && existing.PeriodEnd.Equal(bill.PeriodEnd) {
			return billing.ErrAlreadyBilled
		}
	}
	r.nextID++
	bill.ID = r.nextID
	for i := range bill.Items {
		r.itemID++
		bill.Items[i].ID = r.itemID
		bill.Items[i].BillID = bill.ID
	}
	r.bills[bill.ID] = cloneBill(*bill)
	return nil
}

// Get loads a bill with items.
func (r *BillRepository) Get(ctx context.Context, id int64) (*billing.Bill, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.bills[id]
	if !ok {
		return nil, nil
	}
	found := cloneBill(bill)
	return &found, nil
}

// FindByPeriod loads the customer's bill for the period.
func (r *BillRepository) FindByPeriod(ctx context.Context, customerID int64, period billing.Period) (*billing.Bill, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bill := range r.bills {
		if bill.CustomerID == customerID && bill.PeriodStart.Equal(period.Start) && bill.PeriodEnd.Equal(period.End) {
			found := cloneBill(bill)
			return &found, nil
		}
	}
	return nil, nil
}

// List returns bills newest first without items.
func (r *BillRepository) List(ctx context.Context, filter billing.Filter) ([]billing.Bill, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []billing.Bill
	for _, bill := range r.bills {
		if filter.CustomerID > 0 && bill.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && bill.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && bill.BillDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !bill.BillDate.Before(filter.To) {
			continue
		}
		bill.Items = nil
		result = append(result, bill)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].BillDate.Equal(result[j].BillDate) {
			return result[i].BillDate.After(result[j].BillDate)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Update applies fn to a bill under the repository lock.
func (r *BillRepository) Update(ctx context.Context, id int64, fn func(*billing.Bill) error) (*billing.Bill, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bills[id]
	if !ok {
		return nil, billing.ErrBillNotFound
	}
	bill := cloneBill(stored)
	if err := fn(&bill); err != nil {
		return nil, err
	}
	r.bills[id] = cloneBill(bill)
	return &bill, nil
}

// MarkOverdue moves past-due open bills to overdue.
func (r *BillRepository) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, bill := range r.bills {
		if bill.Overdue(now) {
			bill.Status = billing.StatusOverdue
			bill.UpdatedAt = now.UTC()
			r.bills[id] = bill
			count++
		}
	}
	return count, nil
}

// RecordExport appends an export record.
func (r *BillRepository) RecordExport(ctx context.Context, export billing.Export) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, export)
	return nil
}

// Exports returns recorded exports.
func (r *BillRepository) Exports() []billing.Export {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]billing.Export(nil), r.exports...)
}

func cloneBill(bill billing.Bill) billing.Bill {
	bill.Items = append([]billing.BillItem(nil), bill.Items...)
	if bill.RateID != nil {
		id := *bill.RateID
		bill.RateID = &id
	}
	return bill
}
