package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	billing "waterbill/internal/billing/domain"
	billpg "waterbill/internal/billing/infrastructure/postgres"
	payments "waterbill/internal/payments/domain"
	"waterbill/internal/storage/postgres"
)

const paymentSelect = `
SELECT p.payment_id, p.bill_id, p.customer_id, p.payment_method_id, m.name,
	p.payment_date, p.amount, p.payment_status, p.created_at
FROM payments p
JOIN payment_methods m ON m.payment_method_id = p.payment_method_id`

// PaymentRepository persists payments.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record locks the bill, applies the payment and inserts it in one transaction.
func (r *PaymentRepository) Record(ctx context.Context, payment *payments.Payment, apply func(*billing.Bill) error) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	var updated *billing.Bill
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		bill, err := billpg.LockBill(ctx, tx, payment.BillID)
		if err != nil {
			return err
		}
		if err := apply(bill); err != nil {
			return err
		}
		if err := billpg.SaveState(ctx, tx, bill); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `
INSERT INTO payments (bill_id, customer_id, payment_method_id, payment_date, amount, payment_status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING payment_id`,
			payment.BillID, payment.CustomerID, payment.MethodID, payment.PaymentDate.UTC(),
			payment.Amount, payment.Status, payment.CreatedAt.UTC(),
		).Scan(&payment.ID); err != nil {
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

// ListByCustomer returns a customer's payments newest first.
func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID int64) ([]payments.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	return r.query(ctx, paymentSelect+`
WHERE p.customer_id = $1
ORDER BY p.payment_date DESC, p.payment_id DESC`, customerID)
}

// Recent returns the latest payments.
func (r *PaymentRepository) Recent(ctx context.Context, limit int) ([]payments.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	return r.query(ctx, paymentSelect+`
ORDER BY p.payment_date DESC, p.payment_id DESC
LIMIT $1`, limit)
}

// Methods lists payment methods.
func (r *PaymentRepository) Methods(ctx context.Context) ([]payments.Method, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT payment_method_id, name
FROM payment_methods
ORDER BY payment_method_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.Method
	for rows.Next() {
		var m payments.Method
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PaymentRepository) query(ctx context.Context, query string, args ...any) ([]payments.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.Payment
	for rows.Next() {
		var (
			p      payments.Payment
			amount decimal.Decimal
		)
		if err := rows.Scan(&p.ID, &p.BillID, &p.CustomerID, &p.MethodID, &p.Method,
			&p.PaymentDate, &amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = amount
		p.PaymentDate = p.PaymentDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
