package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	billing "waterbill/internal/billing/domain"
)

func sampleBill() *billing.Bill {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &billing.Bill{
		ID: 12, CustomerID: 3, CustomerName: "Ada",
		BillDate: start.AddDate(0, 1, 0), DueDate: start.AddDate(0, 1, 14),
		PeriodStart: start, PeriodEnd: start.AddDate(0, 1, 0),
		UsageM3: 8, TotalAmount: decimal.RequireFromString("51"), PaidAmount: decimal.Zero,
		Currency: "USD", Status: billing.StatusPending,
		Items: []billing.BillItem{
			{Description: "Water usage", Quantity: 8, UnitPrice: decimal.RequireFromString("5"), Amount: decimal.RequireFromString("40")},
			{Description: "Tax", Quantity: 1, UnitPrice: decimal.RequireFromString("0.15"), Amount: decimal.RequireFromString("6")},
			{Description: "Service fee", Quantity: 1, UnitPrice: decimal.RequireFromString("5"), Amount: decimal.RequireFromString("5")},
		},
	}
}

func TestBuildBillPDF(t *testing.T) {
	body, err := BuildBillPDF(sampleBill())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = BuildBillPDF(nil)
	require.Error(t, err)
}

func TestBuildBillXLSX(t *testing.T) {
	body, err := BuildBillXLSX(sampleBill())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	customer, err := f.GetCellValue("summary", "B2")
	require.NoError(t, err)
	require.Equal(t, "Ada", customer)
	rows, err := f.GetRows("items")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Tax", rows[2][0])
}
