package billing

import (
	"context"
	"time"
)

// Filter narrows a bill listing. Zero fields do not filter.
type Filter struct {
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
}

// Export records a rendered bill document.
type Export struct {
	ID        string
	BillID    int64
	Format    string
	Status    string
	CreatedAt time.Time
}

// Repository persists bills.
type Repository interface {
	// Create inserts a bill with items; ErrAlreadyBilled when the period is taken.
	Create(ctx context.Context, bill *Bill) error
	Get(ctx context.Context, id int64) (*Bill, error)
	FindByPeriod(ctx context.Context, customerID int64, period Period) (*Bill, error)
	List(ctx context.Context, filter Filter) ([]Bill, error)
	// Update locks a bill, applies fn and persists its state.
	Update(ctx context.Context, id int64, fn func(*Bill) error) (*Bill, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	RecordExport(ctx context.Context, export Export) error
}
