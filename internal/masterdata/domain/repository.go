package masterdata

import "context"

// CustomerRepository persists customers with their address and meters.
type CustomerRepository interface {
	// Create stores the address, the customer and the meter together. An
	// empty meter number is replaced by DefaultMeterNumber.
	Create(ctx context.Context, customer *Customer, meter *Meter) error
	Update(ctx context.Context, customer *Customer) error
	// Delete removes meters, the customer and its address together.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	Count(ctx context.Context) (int, error)
}

// MeterRepository persists meters.
type MeterRepository interface {
	ListByCustomer(ctx context.Context, customerID int64) ([]Meter, error)
	Get(ctx context.Context, id int64) (*Meter, error)
	FindByNumber(ctx context.Context, number string) (*Meter, error)
	Add(ctx context.Context, meter *Meter) error
}

// LookupRepository serves account lookups.
type LookupRepository interface {
	AccountTypes(ctx context.Context) ([]AccountType, error)
	AccountStatuses(ctx context.Context) ([]AccountStatus, error)
}
