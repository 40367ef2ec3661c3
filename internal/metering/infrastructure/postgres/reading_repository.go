package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	metering "waterbill/internal/metering/domain"
	"waterbill/internal/storage/postgres"
)

// ReadingRepository is a Postgres implementation for water usage readings.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores readings in one transaction.
func (r *ReadingRepository) Insert(ctx context.Context, readings []metering.Reading) ([]metering.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	stored := make([]metering.Reading, 0, len(readings))
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, reading := range readings {
			reading.ReadingDate = reading.ReadingDate.UTC()
			if err := tx.QueryRowContext(ctx, `
INSERT INTO water_usage (meter_id, reading_date, water_usage)
VALUES ($1, $2, $3)
RETURNING usage_id`, reading.MeterID, reading.ReadingDate, reading.Usage).Scan(&reading.ID); err != nil {
				if postgres.IsForeignKeyViolation(err) {
					return metering.ErrInvalidReading
				}
				return err
			}
			stored = append(stored, reading)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListByMeter returns a meter's readings in the range ordered by date.
func (r *ReadingRepository) ListByMeter(ctx context.Context, meterID int64, period metering.Range) ([]metering.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT usage_id, meter_id, reading_date, water_usage
FROM water_usage
WHERE meter_id = $1
  AND ($2::timestamptz IS NULL OR reading_date >= $2)
  AND ($3::timestamptz IS NULL OR reading_date < $3)
ORDER BY reading_date ASC, usage_id ASC`, meterID, nullTime(period.From), nullTime(period.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []metering.Reading
	for rows.Next() {
		var reading metering.Reading
		if err := rows.Scan(&reading.ID, &reading.MeterID, &reading.ReadingDate, &reading.Usage); err != nil {
			return nil, err
		}
		reading.ReadingDate = reading.ReadingDate.UTC()
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SumByMeters totals usage of meters in the range.
func (r *ReadingRepository) SumByMeters(ctx context.Context, meterIDs []int64, period metering.Range) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("reading repo: nil db")
	}
	if len(meterIDs) == 0 {
		return 0, nil
	}
	var total float64
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(water_usage), 0)
FROM water_usage
WHERE meter_id = ANY($1)
  AND ($2::timestamptz IS NULL OR reading_date >= $2)
  AND ($3::timestamptz IS NULL OR reading_date < $3)`, meterIDs, nullTime(period.From), nullTime(period.To)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
