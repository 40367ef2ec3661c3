package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	masterdata "waterbill/internal/masterdata/domain"
	"waterbill/internal/masterdata/infrastructure/memory"
	rating "waterbill/internal/rating/domain"
)

func TestCustomers_FlagsClosedAccounts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, c := range []masterdata.Customer{
		{Name: "Ada", Email: "ada@example.com", AccountType: "residential", AccountStatus: masterdata.StatusActive, Address: masterdata.Address{Region: "North"}},
		{Name: "Mill", Email: "mill@example.com", AccountType: "industrial", AccountStatus: masterdata.StatusSuspended},
		{Name: "Gone", Email: "gone@example.com", AccountType: "residential", AccountStatus: masterdata.StatusClosed},
	} {
		customer := c
		require.NoError(t, store.Create(ctx, &customer, &masterdata.Meter{}))
	}

	source, err := NewCustomerSource(store)
	require.NoError(t, err)

	all, err := source.Customers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, rating.ClassificationResidential, all[0].Classification)
	require.Equal(t, "North", all[0].Region)
	require.False(t, all[0].Closed)
	require.Equal(t, "Gone", all[1].Name)
	require.True(t, all[1].Closed)
	require.Equal(t, "Mill", all[2].Name)
	require.False(t, all[2].Closed, "suspended accounts are still billed")

	one, err := source.Customers(ctx, []int64{all[2].ID, 404})
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "Mill", one[0].Name)
}
