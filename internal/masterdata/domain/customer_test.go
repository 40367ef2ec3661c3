package masterdata

import (
	"testing"

	"github.com/stretchr/testify/require"

	rating "waterbill/internal/rating/domain"
)

func sampleCustomers() []Customer {
	return []Customer{
		{ID: 1, Name: "Ada Mensah", Email: "ada@example.com", Phone: "555-0101", AccountType: "residential", AccountStatus: StatusActive, Address: Address{Region: "North"}},
		{ID: 2, Name: "Kofi Traders", Email: "billing@kofi.example", Phone: "555-0199", AccountType: "commercial", AccountStatus: StatusActive, Address: Address{Region: "Harbor"}},
		{ID: 3, Name: "Lina Ortiz", Email: "lina@example.com", Phone: "555-0142", AccountType: "residential", AccountStatus: StatusClosed, Address: Address{Region: "north"}},
	}
}

func TestCustomerFilter_Search(t *testing.T) {
	customers := sampleCustomers()
	cases := map[string][]int64{
		"ada":       {1},
		"EXAMPLE":   {1, 2, 3},
		"0199":      {2},
		"NORTH":     {1, 3},
		"":          {1, 2, 3},
		"no-match!": {},
	}
	for term, want := range cases {
		got := CustomerFilter{Search: term}.Apply(customers)
		ids := make([]int64, 0, len(got))
		for _, c := range got {
			ids = append(ids, c.ID)
		}
		require.Equalf(t, want, ids, "term %q", term)
	}
}

func TestCustomerFilter_TypeStatusIDsAndPaging(t *testing.T) {
	customers := sampleCustomers()
	require.Len(t, CustomerFilter{AccountType: "Residential"}.Apply(customers), 2)
	require.Len(t, CustomerFilter{Status: StatusClosed}.Apply(customers), 1)
	require.Len(t, CustomerFilter{IDs: []int64{2, 3}}.Apply(customers), 2)

	page := CustomerFilter{Limit: 1, Offset: 1}.Apply(customers)
	require.Len(t, page, 1)
	require.Equal(t, int64(2), page[0].ID)
}

func TestCustomer_NormalizeAndValidate(t *testing.T) {
	c := Customer{Name: "  Ada ", Email: " ADA@Example.com ", AccountType: "Residential"}
	c.Normalize()
	require.NoError(t, c.Validate())
	require.Equal(t, "ada@example.com", c.Email)
	require.Equal(t, CycleMonthly, c.BillingCycle)
	require.Equal(t, StatusActive, c.AccountStatus)
	require.Equal(t, rating.ClassificationResidential, c.Classification())

	bad := c
	bad.Email = "not-an-email"
	require.ErrorIs(t, bad.Validate(), ErrInvalidCustomer)
	bad = c
	bad.Name = ""
	require.ErrorIs(t, bad.Validate(), ErrInvalidCustomer)
	bad = c
	bad.BillingCycle = "weekly"
	require.ErrorIs(t, bad.Validate(), ErrInvalidCustomer)
}

func TestDefaultMeterNumber(t *testing.T) {
	require.Equal(t, "M42", DefaultMeterNumber(42))
	require.False(t, Customer{AccountStatus: StatusClosed}.Billable())
}
