package reports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PostgresStore runs report queries against the billing schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ready() error {
	if s == nil || s.db == nil {
		return errors.New("report store: nil db")
	}
	return nil
}

// CountCustomers counts all customers.
func (s *PostgresStore) CountCustomers(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count)
	return count, err
}

// Revenue sums completed payments dated in [from, to).
func (s *PostgresStore) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE payment_status = 'completed'
	AND payment_date >= $1
	AND payment_date < $2`, from.UTC(), to.UTC()).Scan(&total)
	return total, err
}

// Usage sums readings dated in [from, to).
func (s *PostgresStore) Usage(ctx context.Context, from, to time.Time) (float64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var total float64
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(water_usage), 0)
FROM water_usage
WHERE reading_date >= $1
	AND reading_date < $2`, from.UTC(), to.UTC()).Scan(&total)
	return total, err
}

// CountBills counts bills in a status.
func (s *PostgresStore) CountBills(ctx context.Context, status string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills WHERE bill_status = $1`, status).Scan(&count)
	return count, err
}

// MonthlyUsage totals readings per calendar month (UTC) in [from, to).
func (s *PostgresStore) MonthlyUsage(ctx context.Context, from, to time.Time) ([]UsagePoint, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	to_char(date_trunc('month', reading_date AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
	SUM(water_usage)
FROM water_usage
WHERE reading_date >= $1
	AND reading_date < $2
GROUP BY month
ORDER BY month ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UsagePoint
	for rows.Next() {
		var p UsagePoint
		if err := rows.Scan(&p.Month, &p.UsageM3); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Bills lists bills dated in [from, to) ordered by bill date.
func (s *PostgresStore) Bills(ctx context.Context, from, to time.Time) ([]BillRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	b.bill_id,
	b.customer_id,
	c.name,
	b.bill_date,
	b.due_date,
	b.period_start,
	b.period_end,
	b.usage_m3,
	b.total_amount,
	b.paid_amount,
	b.currency,
	b.bill_status
FROM bills b
JOIN customers c ON c.customer_id = b.customer_id
WHERE b.bill_date >= $1
	AND b.bill_date < $2
ORDER BY b.bill_date ASC, b.bill_id ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BillRow
	for rows.Next() {
		var row BillRow
		if err := rows.Scan(
			&row.BillID,
			&row.CustomerID,
			&row.CustomerName,
			&row.BillDate,
			&row.DueDate,
			&row.PeriodStart,
			&row.PeriodEnd,
			&row.UsageM3,
			&row.TotalAmount,
			&row.PaidAmount,
			&row.Currency,
			&row.Status,
		); err != nil {
			return nil, err
		}
		row.BillDate = row.BillDate.UTC()
		row.DueDate = row.DueDate.UTC()
		row.PeriodStart = row.PeriodStart.UTC()
		row.PeriodEnd = row.PeriodEnd.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
