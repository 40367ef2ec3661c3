package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "waterbill/internal/billing/domain"
	"waterbill/internal/storage/postgres"
)

const billColumns = `
	b.bill_id, b.customer_id, c.name, b.bill_date, b.due_date, b.period_start, b.period_end,
	b.usage_m3, b.rate_id, b.total_amount, b.paid_amount, b.currency, b.bill_status,
	b.void_reason, b.created_at, b.updated_at`

const billFrom = `
FROM bills b
JOIN customers c ON c.customer_id = b.customer_id`

const billsCustomerPeriodKey = "bills_customer_period_key"

// BillRepository persists bills and their items.
type BillRepository struct {
	db *sql.DB
}

// NewBillRepository constructs a repository.
func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create inserts a bill and its items in one transaction.
func (r *BillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	if bill == nil {
		return errors.New("bill repo: nil bill")
	}
	return postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
INSERT INTO bills (
	customer_id, bill_date, due_date, period_start, period_end, usage_m3, rate_id,
	total_amount, paid_amount, currency, bill_status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING bill_id`,
			bill.CustomerID, bill.BillDate.UTC(), bill.DueDate.UTC(), bill.PeriodStart.UTC(), bill.PeriodEnd.UTC(),
			bill.UsageM3, nullInt64(bill.RateID), bill.TotalAmount, bill.PaidAmount, bill.Currency, string(bill.Status),
			bill.CreatedAt.UTC(), bill.UpdatedAt.UTC(),
		).Scan(&bill.ID)
		if err != nil {
			if postgres.IsUniqueViolation(err, billsCustomerPeriodKey) {
				return billing.ErrAlreadyBilled
			}
			return err
		}
		for i := range bill.Items {
			item := &bill.Items[i]
			item.BillID = bill.ID
			if err := tx.QueryRowContext(ctx, `
INSERT INTO bill_items (bill_id, description, quantity, unit_price, amount)
VALUES ($1,$2,$3,$4,$5)
RETURNING bill_item_id`, bill.ID, item.Description, item.Quantity, item.UnitPrice, item.Amount).Scan(&item.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get loads a bill with its items.
func (r *BillRepository) Get(ctx context.Context, id int64) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	bill, err := scanBill(r.db.QueryRowContext(ctx, `SELECT`+billColumns+billFrom+`
WHERE b.bill_id = $1
LIMIT 1`, id))
	if err != nil || bill == nil {
		return nil, err
	}
	items, err := listItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	bill.Items = items
	return bill, nil
}

// FindByPeriod loads the customer's bill for the period.
func (r *BillRepository) FindByPeriod(ctx context.Context, customerID int64, period billing.Period) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	return scanBill(r.db.QueryRowContext(ctx, `SELECT`+billColumns+billFrom+`
WHERE b.customer_id = $1 AND b.period_start = $2 AND b.period_end = $3
LIMIT 1`, customerID, period.Start.UTC(), period.End.UTC()))
}

// List returns bills newest first without items.
func (r *BillRepository) List(ctx context.Context, filter billing.Filter) ([]billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("b.customer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("b.bill_status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		where = append(where, fmt.Sprintf("b.bill_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		where = append(where, fmt.Sprintf("b.bill_date < $%d", len(args)))
	}
	query := `SELECT` + billColumns + billFrom
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY b.bill_date DESC, b.bill_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		if bill != nil {
			result = append(result, *bill)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update locks the bill row, applies fn and writes the new state.
func (r *BillRepository) Update(ctx context.Context, id int64, fn func(*billing.Bill) error) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	var updated *billing.Bill
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		bill, err := LockBill(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(bill); err != nil {
			return err
		}
		if err := SaveState(ctx, tx, bill); err != nil {
			return err
		}
		updated = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// LockBill selects a bill FOR UPDATE inside tx. It returns ErrBillNotFound
// when the bill is missing.
func LockBill(ctx context.Context, tx postgres.DBTX, id int64) (*billing.Bill, error) {
	bill, err := scanBill(tx.QueryRowContext(ctx, `SELECT`+billColumns+billFrom+`
WHERE b.bill_id = $1
FOR UPDATE OF b`, id))
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	return bill, nil
}

// SaveState writes a bill's payment and status fields.
func SaveState(ctx context.Context, tx postgres.DBTX, bill *billing.Bill) error {
	_, err := tx.ExecContext(ctx, `
UPDATE bills
SET paid_amount = $1, bill_status = $2, void_reason = $3, updated_at = $4
WHERE bill_id = $5`, bill.PaidAmount, string(bill.Status), nullString(bill.VoidReason), bill.UpdatedAt.UTC(), bill.ID)
	return err
}

// MarkOverdue moves past-due open bills to overdue.
func (r *BillRepository) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("bill repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE bills
SET bill_status = $1, updated_at = $2
WHERE bill_status IN ($3, $4) AND due_date < $2`,
		string(billing.StatusOverdue), now.UTC(), string(billing.StatusPending), string(billing.StatusPartiallyPaid))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// RecordExport stores an export record.
func (r *BillRepository) RecordExport(ctx context.Context, export billing.Export) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO bill_exports (id, bill_id, format, status, created_at)
VALUES ($1,$2,$3,$4,$5)`, export.ID, export.BillID, export.Format, export.Status, export.CreatedAt.UTC())
	return err
}

func listItems(ctx context.Context, db postgres.DBTX, billID int64) ([]billing.BillItem, error) {
	rows, err := db.QueryContext(ctx, `
SELECT bill_item_id, bill_id, description, quantity, unit_price, amount
FROM bill_items
WHERE bill_id = $1
ORDER BY bill_item_id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.BillItem
	for rows.Next() {
		var item billing.BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Amount); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*billing.Bill, error) {
	var (
		bill       billing.Bill
		status     string
		rateID     sql.NullInt64
		voidReason sql.NullString
		total      decimal.Decimal
		paid       decimal.Decimal
	)
	if err := row.Scan(
		&bill.ID, &bill.CustomerID, &bill.CustomerName, &bill.BillDate, &bill.DueDate,
		&bill.PeriodStart, &bill.PeriodEnd, &bill.UsageM3, &rateID, &total, &paid,
		&bill.Currency, &status, &voidReason, &bill.CreatedAt, &bill.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	bill.Status = billing.Status(status)
	bill.TotalAmount = total
	bill.PaidAmount = paid
	if rateID.Valid {
		id := rateID.Int64
		bill.RateID = &id
	}
	if voidReason.Valid {
		bill.VoidReason = voidReason.String
	}
	bill.BillDate = bill.BillDate.UTC()
	bill.DueDate = bill.DueDate.UTC()
	bill.PeriodStart = bill.PeriodStart.UTC()
	bill.PeriodEnd = bill.PeriodEnd.UTC()
	bill.CreatedAt = bill.CreatedAt.UTC()
	bill.UpdatedAt = bill.UpdatedAt.UTC()
	return &bill, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
