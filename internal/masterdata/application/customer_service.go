package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	masterdata "waterbill/internal/masterdata/domain"
)

// CreateCustomerRequest registers a customer with a billing address and a
// first meter.
type CreateCustomerRequest struct {
	Name             string             `json:"name"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone"`
	Address          masterdata.Address `json:"billing_address"`
	BillingCycle     string             `json:"billing_cycle"`
	AccountType      string             `json:"account_type"`
	AccountStatus    string             `json:"account_status"`
	MeterNumber      string             `json:"meter_number"`
	InstallationDate time.Time          `json:"installation_date"`
}

// UpdateCustomerRequest replaces a customer's editable fields.
type UpdateCustomerRequest struct {
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	Address       masterdata.Address `json:"billing_address"`
	BillingCycle  string             `json:"billing_cycle"`
	AccountType   string             `json:"account_type"`
	AccountStatus string             `json:"account_status"`
}

// CustomerService manages customers and their meters.
type CustomerService struct {
	customers masterdata.CustomerRepository
	meters    masterdata.MeterRepository
	lookups   masterdata.LookupRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewCustomerService constructs a customer service.
func NewCustomerService(customers masterdata.CustomerRepository, meters masterdata.MeterRepository, lookups masterdata.LookupRepository, logger *zap.Logger) (*CustomerService, error) {
	if customers == nil {
		return nil, errors.New("customer service: nil customer repo")
	}
	if meters == nil {
		return nil, errors.New("customer service: nil meter repo")
	}
	if lookups == nil {
		return nil, errors.New("customer service: nil lookup repo")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{customers: customers, meters: meters, lookups: lookups, logger: logger, now: time.Now}, nil
}

// Create registers a customer. The email must not be registered already.
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*masterdata.Customer, *masterdata.Meter, error) {
	customer := masterdata.Customer{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		BillingCycle:  req.BillingCycle,
		AccountType:   req.AccountType,
		AccountStatus: req.AccountStatus,
	}
	customer.Normalize()
	if err := customer.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.ensureAccountType(ctx, customer.AccountType); err != nil {
		return nil, nil, err
	}
	existing, err := s.customers.FindByEmail(ctx, customer.Email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: %s", masterdata.ErrDuplicateEmail, customer.Email)
	}

	meter := &masterdata.Meter{
		MeterNumber:      strings.TrimSpace(req.MeterNumber),
		InstallationDate: req.InstallationDate,
	}
	if meter.InstallationDate.IsZero() {
		meter.InstallationDate = s.now().UTC()
	}
	if err := s.customers.Create(ctx, &customer, meter); err != nil {
		return nil, nil, err
	}
	s.logger.Info("customer created",
		zap.Int64("customer_id", customer.ID),
		zap.String("account_type", customer.AccountType),
		zap.String("meter_number", meter.MeterNumber),
	)
	return &customer, meter, nil
}

// Update replaces a customer's fields.
func (s *CustomerService) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*masterdata.Customer, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	customer := masterdata.Customer{
		ID:            id,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		BillingCycle:  req.BillingCycle,
		AccountType:   req.AccountType,
		AccountStatus: req.AccountStatus,
		CreatedAt:     current.CreatedAt,
	}
	customer.Normalize()
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureAccountType(ctx, customer.AccountType); err != nil {
		return nil, err
	}
	if customer.Email != current.Email {
		other, err := s.customers.FindByEmail(ctx, customer.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, fmt.Errorf("%w: %s", masterdata.ErrDuplicateEmail, customer.Email)
		}
	}
	if err := s.customers.Update(ctx, &customer); err != nil {
		return nil, err
	}
	s.logger.Info("customer updated", zap.Int64("customer_id", id))
	return &customer, nil
}

// Delete removes a customer with its meters and address.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	if err := s.customers.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", zap.Int64("customer_id", id))
	return nil
}

// Get loads a customer.
func (s *CustomerService) Get(ctx context.Context, id int64) (*masterdata.Customer, error) {
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, masterdata.ErrCustomerNotFound
	}
	return customer, nil
}

// List returns customers matching filter.
func (s *CustomerService) List(ctx context.Context, filter masterdata.CustomerFilter) ([]masterdata.Customer, error) {
	return s.customers.List(ctx, filter)
}

// Count returns the number of customers.
func (s *CustomerService) Count(ctx context.Context) (int, error) {
	return s.customers.Count(ctx)
}

// Meters lists a customer's meters.
func (s *CustomerService) Meters(ctx context.Context, customerID int64) ([]masterdata.Meter, error) {
	if _, err := s.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.meters.ListByCustomer(ctx, customerID)
}

// Meter loads a meter by id.
func (s *CustomerService) Meter(ctx context.Context, id int64) (*masterdata.Meter, error) {
	meter, err := s.meters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, masterdata.ErrMeterNotFound
	}
	return meter, nil
}

// MeterByNumber loads a meter by its number.
func (s *CustomerService) MeterByNumber(ctx context.Context, number string) (*masterdata.Meter, error) {
	meter, err := s.meters.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, masterdata.ErrMeterNotFound
	}
	return meter, nil
}

// AddMeter installs another meter for a customer.
func (s *CustomerService) AddMeter(ctx context.Context, customerID int64, number string, installedAt time.Time) (*masterdata.Meter, error) {
	if _, err := s.Get(ctx, customerID); err != nil {
		return nil, err
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("%w: meter number is required", masterdata.ErrInvalidCustomer)
	}
	existing, err := s.meters.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", masterdata.ErrDuplicateMeter, number)
	}
	if installedAt.IsZero() {
		installedAt = s.now().UTC()
	}
	meter := &masterdata.Meter{CustomerID: customerID, MeterNumber: number, InstallationDate: installedAt.UTC()}
	if err := s.meters.Add(ctx, meter); err != nil {
		return nil, err
	}
	s.logger.Info("meter added", zap.Int64("customer_id", customerID), zap.String("meter_number", number))
	return meter, nil
}

// AccountTypes lists account types.
func (s *CustomerService) AccountTypes(ctx context.Context) ([]masterdata.AccountType, error) {
	return s.lookups.AccountTypes(ctx)
}

// AccountStatuses lists account statuses.
func (s *CustomerService) AccountStatuses(ctx context.Context) ([]masterdata.AccountStatus, error) {
	return s.lookups.AccountStatuses(ctx)
}

func (s *CustomerService) ensureAccountType(ctx context.Context, name string) error {
	types, err := s.lookups.AccountTypes(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", masterdata.ErrUnknownAccountType, name)
}
