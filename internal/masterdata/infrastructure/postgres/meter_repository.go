package postgres

import (
	"context"
	"database/sql"
	"errors"

	masterdata "waterbill/internal/masterdata/domain"
	"waterbill/internal/storage/postgres"
)

// MeterRepository is a Postgres implementation for meters.
type MeterRepository struct {
	db postgres.DBTX
}

// NewMeterRepository constructs a repository.
func NewMeterRepository(db postgres.DBTX) *MeterRepository {
	return &MeterRepository{db: db}
}

// ListByCustomer returns a customer's meters ordered by id.
func (r *MeterRepository) ListByCustomer(ctx context.Context, customerID int64) ([]masterdata.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT meter_id, customer_id, meter_number, installation_date
FROM meters
WHERE customer_id = $1
ORDER BY meter_id ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Meter
	for rows.Next() {
		meter, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, meter)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads a meter by id.
func (r *MeterRepository) Get(ctx context.Context, id int64) (*masterdata.Meter, error) {
	return r.getOne(ctx, `WHERE meter_id = $1`, id)
}

// FindByNumber loads a meter by its number.
func (r *MeterRepository) FindByNumber(ctx context.Context, number string) (*masterdata.Meter, error) {
	return r.getOne(ctx, `WHERE meter_number = $1`, number)
}

// Add inserts a meter.
func (r *MeterRepository) Add(ctx context.Context, meter *masterdata.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	if meter == nil {
		return errors.New("meter repo: nil meter")
	}
	return translateError(insertMeter(ctx, r.db, meter))
}

func (r *MeterRepository) getOne(ctx context.Context, where string, arg any) (*masterdata.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	meter, err := scanMeter(r.db.QueryRowContext(ctx, `
SELECT meter_id, customer_id, meter_number, installation_date
FROM meters `+where+`
LIMIT 1`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &meter, nil
}

func insertMeter(ctx context.Context, db postgres.DBTX, meter *masterdata.Meter) error {
	return db.QueryRowContext(ctx, `
INSERT INTO meters (customer_id, meter_number, installation_date)
VALUES ($1, $2, $3)
RETURNING meter_id`,
		meter.CustomerID, meter.MeterNumber, meter.InstallationDate.UTC(),
	).Scan(&meter.ID)
}

func scanMeter(row rowScanner) (masterdata.Meter, error) {
	var m masterdata.Meter
	if err := row.Scan(&m.ID, &m.CustomerID, &m.MeterNumber, &m.InstallationDate); err != nil {
		return masterdata.Meter{}, err
	}
	m.InstallationDate = m.InstallationDate.UTC()
	return m, nil
}
