package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	masterdata "waterbill/internal/masterdata/domain"
)

// Store keeps customers, meters and lookups in memory. It satisfies the
// customer, meter and lookup repositories.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	customers map[int64]masterdata.Customer
	meters    map[int64]masterdata.Meter
	types     []masterdata.AccountType
	statuses  []masterdata.AccountStatus
	// billed marks customers that own bills; Delete refuses them.
	billed map[int64]bool
}

// NewStore constructs a store with the default lookup rows.
func NewStore() *Store {
	return &Store{
		customers: make(map[int64]masterdata.Customer),
		meters:    make(map[int64]masterdata.Meter),
		billed:    make(map[int64]bool),
		types: []masterdata.AccountType{
			{ID: 1, Name: "residential"}, {ID: 2, Name: "commercial"}, {ID: 3, Name: "industrial"},
		},
		statuses: []masterdata.AccountStatus{
			{ID: 1, Name: masterdata.StatusActive}, {ID: 2, Name: masterdata.StatusSuspended}, {ID: 3, Name: masterdata.StatusClosed},
		},
	}
}

// MarkBilled flags a customer as owning bills.
func (s *Store) MarkBilled(customerID int64) {
	s.mu.Lock()
	s.billed[customerID] = true
	s.mu.Unlock()
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Create stores a customer with its address and meter.
func (s *Store) Create(ctx context.Context, customer *masterdata.Customer, meter *masterdata.Meter) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownType(customer.AccountType) {
		return masterdata.ErrUnknownAccountType
	}
	for _, existing := range s.customers {
		if strings.EqualFold(existing.Email, customer.Email) {
			return masterdata.ErrDuplicateEmail
		}
	}
	if meter != nil && meter.MeterNumber != "" && s.meterNumberTaken(meter.MeterNumber) {
		return masterdata.ErrDuplicateMeter
	}
	now := time.Now().UTC()
	customer.ID = s.id()
	customer.Address.ID = s.id()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	s.customers[customer.ID] = *customer
	if meter != nil {
		meter.CustomerID = customer.ID
		if meter.MeterNumber == "" {
			meter.MeterNumber = masterdata.DefaultMeterNumber(customer.ID)
		}
		if meter.InstallationDate.IsZero() {
			meter.InstallationDate = now
		}
		meter.ID = s.id()
		s.meters[meter.ID] = *meter
	}
	return nil
}

// Update overwrites a customer.
func (s *Store) Update(ctx context.Context, customer *masterdata.Customer) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[customer.ID]
	if !ok {
		return masterdata.ErrCustomerNotFound
	}
	if !s.knownType(customer.AccountType) {
		return masterdata.ErrUnknownAccountType
	}
	for id, other := range s.customers {
		if id != customer.ID && strings.EqualFold(other.Email, customer.Email) {
			return masterdata.ErrDuplicateEmail
		}
	}
	customer.Address.ID = existing.Address.ID
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customer.ID] = *customer
	return nil
}

// Delete removes a customer and its meters.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return masterdata.ErrCustomerNotFound
	}
	if s.billed[id] {
		return masterdata.ErrCustomerHasBills
	}
	for meterID, meter := range s.meters {
		if meter.CustomerID == id {
			delete(s.meters, meterID)
		}
	}
	delete(s.customers, id)
	return nil
}

// Get loads a customer.
func (s *Store) Get(ctx context.Context, id int64) (*masterdata.Customer, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	return &customer, nil
}

// FindByEmail loads a customer by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*masterdata.Customer, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, customer := range s.customers {
		if strings.EqualFold(customer.Email, email) {
			found := customer
			return &found, nil
		}
	}
	return nil, nil
}

// List returns customers matching filter ordered by name.
func (s *Store) List(ctx context.Context, filter masterdata.CustomerFilter) ([]masterdata.Customer, error) {
	_ = ctx
	s.mu.RLock()
	all := make([]masterdata.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		all = append(all, customer)
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return filter.Apply(all), nil
}

// Count returns the number of customers.
func (s *Store) Count(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), nil
}

// ListByCustomer returns a customer's meters ordered by id.
func (s *Store) ListByCustomer(ctx context.Context, customerID int64) ([]masterdata.Meter, error) {
	_ = ctx
	s.mu.RLock()
	var result []masterdata.Meter
	for _, meter := range s.meters {
		if meter.CustomerID == customerID {
			result = append(result, meter)
		}
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetMeter loads a meter by id.
func (s *Store) GetMeter(ctx context.Context, id int64) (*masterdata.Meter, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	meter, ok := s.meters[id]
	if !ok {
		return nil, nil
	}
	return &meter, nil
}

// FindByNumber loads a meter by number.
func (s *Store) FindByNumber(ctx context.Context, number string) (*masterdata.Meter, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, meter := range s.meters {
		if meter.MeterNumber == number {
			found := meter
			return &found, nil
		}
	}
	return nil, nil
}

// Add stores a meter.
func (s *Store) Add(ctx context.Context, meter *masterdata.Meter) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[meter.CustomerID]; !ok {
		return masterdata.ErrCustomerNotFound
	}
	if s.meterNumberTaken(meter.MeterNumber) {
		return masterdata.ErrDuplicateMeter
	}
	meter.ID = s.id()
	s.meters[meter.ID] = *meter
	return nil
}

// AccountTypes lists account types.
func (s *Store) AccountTypes(ctx context.Context) ([]masterdata.AccountType, error) {
	_ = ctx
	return append([]masterdata.AccountType(nil), s.types...), nil
}

// AccountStatuses lists account statuses.
func (s *Store) AccountStatuses(ctx context.Context) ([]masterdata.AccountStatus, error) {
	_ = ctx
	return append([]masterdata.AccountStatus(nil), s.statuses...), nil
}

// Meters adapts the store to the meter repository, whose Get collides with
// the customer lookup.
func (s *Store) Meters() MeterView { return MeterView{store: s} }

// MeterView is the meter repository view of a Store.
type MeterView struct {
	store *Store
}

func (v MeterView) ListByCustomer(ctx context.Context, customerID int64) ([]masterdata.Meter, error) {
	return v.store.ListByCustomer(ctx, customerID)
}

func (v MeterView) Get(ctx context.Context, id int64) (*masterdata.Meter, error) {
	return v.store.GetMeter(ctx, id)
}

func (v MeterView) FindByNumber(ctx context.Context, number string) (*masterdata.Meter, error) {
	return v.store.FindByNumber(ctx, number)
}

func (v MeterView) Add(ctx context.Context, meter *masterdata.Meter) error {
	return v.store.Add(ctx, meter)
}

func (s *Store) knownType(name string) bool {
	for _, t := range s.types {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) meterNumberTaken(number string) bool {
	for _, meter := range s.meters {
		if meter.MeterNumber == number {
			return true
		}
	}
	return false
}
