package masterdata

import (
	"context"
	"errors"

	"github.com/samber/lo"

	billingapp "waterbill/internal/billing/application"
	masterdata "waterbill/internal/masterdata/domain"
)

// CustomerSource reads the billing view of customers from master data.
type CustomerSource struct {
	customers masterdata.CustomerRepository
}

// NewCustomerSource constructs a source.
func NewCustomerSource(customers masterdata.CustomerRepository) (*CustomerSource, error) {
	if customers == nil {
		return nil, errors.New("billing customer source: nil repo")
	}
	return &CustomerSource{customers: customers}, nil
}

// Customers returns the selected customers with closed accounts flagged.
func (s *CustomerSource) Customers(ctx context.Context, ids []int64) ([]billingapp.Customer, error) {
	customers, err := s.customers.List(ctx, masterdata.CustomerFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	return lo.Map(customers, func(c masterdata.Customer, _ int) billingapp.Customer {
		return billingapp.Customer{
			ID:             c.ID,
			Name:           c.Name,
			Classification: c.Classification(),
			Region:         c.Region(),
			Closed:         !c.Billable(),
		}
	}), nil
}
