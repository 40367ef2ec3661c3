package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillGenerated is published once per issued bill.
type BillGenerated struct {
	BillID       int64
	CustomerID   int64
	CustomerName string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	UsageM3      float64
	Total        decimal.Decimal
	Currency     string
	DueDate      time.Time
	OccurredAt   time.Time
}
