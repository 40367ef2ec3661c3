package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	rating "waterbill/internal/rating/domain"
)

var march = MonthPeriod(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

func pricedCost(t *testing.T, usage float64) rating.CostResult {
	t.Helper()
	d := decimal.RequireFromString
	tiers := []rating.RateTier{
		{ID: 1, UsageStart: 0, UsageEnd: 10, PricePerM3: d("5"), Classification: rating.ClassificationResidential, Tax: d("0.15"), ServiceFee: d("5")},
		{ID: 2, UsageStart: 11, UsageEnd: 20, PricePerM3: d("10.333"), Classification: rating.ClassificationResidential, Tax: d("0.15"), ServiceFee: d("5")},
	}
	result, err := rating.ComputeCost(usage, rating.ClassificationResidential, tiers)
	require.NoError(t, err)
	return result
}

func draft(t *testing.T, usage float64) Draft {
	return Draft{
		CustomerID:   7,
		CustomerName: "Ada",
		Period:       march,
		BillDate:     march.End,
		DueDays:      14,
		Currency:     "USD",
		Cost:         pricedCost(t, usage),
	}
}

func TestMonthPeriod(t *testing.T) {
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), march.Start)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), march.End)
	require.NoError(t, march.Validate())
	require.ErrorIs(t, Period{Start: march.End, End: march.Start}.Validate(), ErrInvalidPeriod)
	require.ErrorIs(t, Period{}.Validate(), ErrInvalidPeriod)
}

func TestNewBill_ItemsSumToTotal(t *testing.T) {
	bill, err := NewBill(draft(t, 8))
	require.NoError(t, err)
	require.Equal(t, StatusPending, bill.Status)
	require.Len(t, bill.Items, 3)
	require.Equal(t, "51", bill.TotalAmount.String())
	require.Equal(t, int64(1), *bill.RateID)
	require.Equal(t, march.End.AddDate(0, 0, 14), bill.DueDate)

	// 15 * 10.333 = 154.995 -> 155.00, tax 23.24925 -> 23.25
	bill, err = NewBill(draft(t, 15))
	require.NoError(t, err)
	require.Equal(t, "155", bill.Items[0].Amount.String())
	require.Equal(t, "23.25", bill.Items[1].Amount.String())
	require.Equal(t, "183.25", bill.TotalAmount.String())
}

func TestNewBill_RejectsUnpriced(t *testing.T) {
	_, err := NewBill(draft(t, 500))
	require.ErrorIs(t, err, ErrUnpriced)
}

func TestApplyPayment(t *testing.T) {
	bill, err := NewBill(draft(t, 8))
	require.NoError(t, err)
	at := march.End.AddDate(0, 0, 2)

	require.ErrorIs(t, bill.ApplyPayment(decimal.Zero, at), ErrInvalidPayment)
	require.ErrorIs(t, bill.ApplyPayment(decimal.NewFromInt(52), at), ErrInvalidPayment)

	require.NoError(t, bill.ApplyPayment(decimal.NewFromInt(20), at))
	require.Equal(t, StatusPartiallyPaid, bill.Status)
	require.Equal(t, "31", bill.Balance().String())

	require.ErrorIs(t, bill.Void("mistake", at), ErrBillClosed)

	require.NoError(t, bill.ApplyPayment(decimal.NewFromInt(31), at))
	require.Equal(t, StatusPaid, bill.Status)
	require.ErrorIs(t, bill.ApplyPayment(decimal.NewFromInt(1), at), ErrBillClosed)
}

func TestVoidAndOverdue(t *testing.T) {
	bill, err := NewBill(draft(t, 8))
	require.NoError(t, err)
	require.False(t, bill.Overdue(bill.DueDate))
	require.True(t, bill.Overdue(bill.DueDate.Add(time.Second)))

	require.NoError(t, bill.Void(" meter fault ", march.End))
	require.Equal(t, StatusVoid, bill.Status)
	require.Equal(t, "meter fault", bill.VoidReason)
	require.False(t, bill.Overdue(bill.DueDate.AddDate(1, 0, 0)))
	require.ErrorIs(t, bill.ApplyPayment(decimal.NewFromInt(1), march.End), ErrBillClosed)
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" Overdue")
	require.True(t, ok)
	require.Equal(t, StatusOverdue, s)
	_, ok = ParseStatus("draft")
	require.False(t, ok)
}
