package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	masterdata "waterbill/internal/masterdata/domain"
	"waterbill/internal/storage/postgres"
)

const customerSelect = `
SELECT c.customer_id, c.name, c.email, c.phone, COALESCE(c.billing_cycle, ''),
	COALESCE(t.name, ''), COALESCE(s.name, ''),
	COALESCE(a.address_id, 0), COALESCE(a.address_line, ''), COALESCE(a.city, ''),
	COALESCE(a.state, ''), COALESCE(a.postal_code, ''), COALESCE(a.region, ''),
	c.created_at, c.updated_at
FROM customers c
LEFT JOIN addresses a ON a.address_id = c.billing_address_id
LEFT JOIN account_types t ON t.account_type_id = c.account_type
LEFT JOIN account_statuses s ON s.account_status_id = c.account_status`

// CustomerRepository is a Postgres implementation for customers.
type CustomerRepository struct {
	db *sql.DB
}

// NewCustomerRepository constructs a repository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts the address, customer and first meter in one transaction.
func (r *CustomerRepository) Create(ctx context.Context, customer *masterdata.Customer, meter *masterdata.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("customer repo: nil db")
	}
	if customer == nil {
		return errors.New("customer repo: nil customer")
	}
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		addressID, err := insertAddress(ctx, tx, customer.Address)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		customer.Address.ID = addressID

		typeID, statusID, err := lookupIDs(ctx, tx, customer.AccountType, customer.AccountStatus)
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `
INSERT INTO customers (name, email, phone, billing_address_id, billing_cycle, account_type, account_status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING customer_id, created_at, updated_at`,
			customer.Name, customer.Email, customer.Phone, addressID, customer.BillingCycle, typeID, statusID,
		).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}

		if meter == nil {
			return nil
		}
		meter.CustomerID = customer.ID
		if meter.MeterNumber == "" {
			meter.MeterNumber = masterdata.DefaultMeterNumber(customer.ID)
		}
		if meter.InstallationDate.IsZero() {
			meter.InstallationDate = time.Now().UTC()
		}
		if err := insertMeter(ctx, tx, meter); err != nil {
			return fmt.Errorf("insert meter: %w", err)
		}
		return nil
	})
	if err != nil {
		return translateError(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	customer.UpdatedAt = customer.UpdatedAt.UTC()
	return nil
}

// Update overwrites customer fields and the billing address.
func (r *CustomerRepository) Update(ctx context.Context, customer *masterdata.Customer) error {
	if r == nil || r.db == nil {
		return errors.New("customer repo: nil db")
	}
	if customer == nil {
		return errors.New("customer repo: nil customer")
	}
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var addressID sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT billing_address_id FROM customers WHERE customer_id = $1 FOR UPDATE`, customer.ID).Scan(&addressID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return masterdata.ErrCustomerNotFound
			}
			return err
		}
		if addressID.Valid {
			if _, err := tx.ExecContext(ctx, `
UPDATE addresses SET address_line = $1, city = $2, state = $3, postal_code = $4, region = $5
WHERE address_id = $6`,
				customer.Address.Line, customer.Address.City, customer.Address.State,
				customer.Address.PostalCode, nullString(customer.Address.Region), addressID.Int64,
			); err != nil {
				return fmt.Errorf("update address: %w", err)
			}
			customer.Address.ID = addressID.Int64
		} else {
			id, err := insertAddress(ctx, tx, customer.Address)
			if err != nil {
				return fmt.Errorf("insert address: %w", err)
			}
			customer.Address.ID = id
		}

		typeID, statusID, err := lookupIDs(ctx, tx, customer.AccountType, customer.AccountStatus)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
UPDATE customers
SET name = $1, email = $2, phone = $3, billing_address_id = $4, billing_cycle = $5,
	account_type = $6, account_status = $7, updated_at = NOW()
WHERE customer_id = $8
RETURNING updated_at`,
			customer.Name, customer.Email, customer.Phone, customer.Address.ID, customer.BillingCycle,
			typeID, statusID, customer.ID,
		).Scan(&customer.UpdatedAt)
	})
	if err != nil {
		return translateError(err)
	}
	customer.UpdatedAt = customer.UpdatedAt.UTC()
	return nil
}

// Delete removes the customer's meters, the customer and its address.
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("customer repo: nil db")
	}
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var addressID sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT billing_address_id FROM customers WHERE customer_id = $1 FOR UPDATE`, id).Scan(&addressID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return masterdata.ErrCustomerNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM meters WHERE customer_id = $1`, id); err != nil {
			return fmt.Errorf("delete meters: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE customer_id = $1`, id); err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		if addressID.Valid {
			if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE address_id = $1`, addressID.Int64); err != nil {
				return fmt.Errorf("delete address: %w", err)
			}
		}
		return nil
	})
	return translateError(err)
}

// Get loads a customer by id.
func (r *CustomerRepository) Get(ctx context.Context, id int64) (*masterdata.Customer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("customer repo: nil db")
	}
	customer, err := scanCustomer(r.db.QueryRowContext(ctx, customerSelect+` WHERE c.customer_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// FindByEmail loads a customer by normalized email.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*masterdata.Customer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("customer repo: nil db")
	}
	customer, err := scanCustomer(r.db.QueryRowContext(ctx, customerSelect+` WHERE lower(c.email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// List returns customers matching filter ordered by name.
func (r *CustomerRepository) List(ctx context.Context, filter masterdata.CustomerFilter) ([]masterdata.Customer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("customer repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(c.name ILIKE $%d OR c.email ILIKE $%d OR c.phone ILIKE $%d OR COALESCE(a.region, '') ILIKE $%d)", n, n, n, n))
	}
	if filter.AccountType != "" {
		args = append(args, strings.ToLower(filter.AccountType))
		where = append(where, fmt.Sprintf("t.name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, strings.ToLower(filter.Status))
		where = append(where, fmt.Sprintf("s.name = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		where = append(where, fmt.Sprintf("c.customer_id = ANY($%d)", len(args)))
	}

	query := customerSelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY c.name ASC, c.customer_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of customers.
func (r *CustomerRepository) Count(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("customer repo: nil db")
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (masterdata.Customer, error) {
	var c masterdata.Customer
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.BillingCycle,
		&c.AccountType,
		&c.AccountStatus,
		&c.Address.ID,
		&c.Address.Line,
		&c.Address.City,
		&c.Address.State,
		&c.Address.PostalCode,
		&c.Address.Region,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return masterdata.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func insertAddress(ctx context.Context, db postgres.DBTX, address masterdata.Address) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
INSERT INTO addresses (address_line, city, state, postal_code, region)
VALUES ($1, $2, $3, $4, $5)
RETURNING address_id`,
		address.Line, address.City, address.State, address.PostalCode, nullString(address.Region),
	).Scan(&id)
	return id, err
}

func lookupIDs(ctx context.Context, db postgres.DBTX, accountType, status string) (int64, int64, error) {
	var typeID, statusID int64
	if err := db.QueryRowContext(ctx, `SELECT account_type_id FROM account_types WHERE name = $1`, accountType).Scan(&typeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: %q", masterdata.ErrUnknownAccountType, accountType)
		}
		return 0, 0, err
	}
	if err := db.QueryRowContext(ctx, `SELECT account_status_id FROM account_statuses WHERE name = $1`, status).Scan(&statusID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: account status %q", masterdata.ErrInvalidCustomer, status)
		}
		return 0, 0, err
	}
	return typeID, statusID, nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, "customers_email_key"):
		return fmt.Errorf("%w: %v", masterdata.ErrDuplicateEmail, err)
	case postgres.IsUniqueViolation(err, "meters_meter_number_key"):
		return fmt.Errorf("%w: %v", masterdata.ErrDuplicateMeter, err)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", masterdata.ErrCustomerHasBills, err)
	}
	return err
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
