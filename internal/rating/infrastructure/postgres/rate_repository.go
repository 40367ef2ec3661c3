package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	rating "waterbill/internal/rating/domain"
	"waterbill/internal/storage/postgres"
)

const defaultRatesTable = "rates"

// RateRepository is a Postgres implementation for rate tiers.
type RateRepository struct {
	db    *sql.DB
	table string
}

// RateOption configures the repository.
type RateOption func(*RateRepository)

// WithRatesTable overrides the default table name.
func WithRatesTable(table string) RateOption {
	return func(r *RateRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRateRepository constructs a repository.
func NewRateRepository(db *sql.DB, opts ...RateOption) *RateRepository {
	repo := &RateRepository{db: db, table: defaultRatesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// List returns every tier ordered by rate_id.
func (r *RateRepository) List(ctx context.Context) ([]rating.RateTier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT rate_id, usage_tier_start, usage_tier_end, price_per_m3, customer_type, region, tax, service_fee
FROM %s
ORDER BY rate_id ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rating.RateTier
	for rows.Next() {
		tier, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads a tier by id.
func (r *RateRepository) Get(ctx context.Context, id int64) (*rating.RateTier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT rate_id, usage_tier_start, usage_tier_end, price_per_m3, customer_type, region, tax, service_fee
FROM %s
WHERE rate_id = $1
LIMIT 1`, r.table)
	tier, err := scanTier(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

// Create inserts a tier and assigns its id.
func (r *RateRepository) Create(ctx context.Context, tier *rating.RateTier) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	if tier == nil {
		return errors.New("rate repo: nil tier")
	}
	return r.insert(ctx, r.db, tier)
}

// CreateMany inserts tiers in one transaction.
func (r *RateRepository) CreateMany(ctx context.Context, tiers []rating.RateTier) ([]rating.RateTier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	created := make([]rating.RateTier, 0, len(tiers))
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, tier := range tiers {
			tier := tier
			if err := r.insert(ctx, tx, &tier); err != nil {
				return err
			}
			created = append(created, tier)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update overwrites a tier.
func (r *RateRepository) Update(ctx context.Context, tier rating.RateTier) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET usage_tier_start = $1, usage_tier_end = $2, price_per_m3 = $3, customer_type = $4,
	region = $5, tax = $6, service_fee = $7
WHERE rate_id = $8`, r.table)
	res, err := r.db.ExecContext(ctx, query,
		tier.UsageStart, tier.UsageEnd, tier.PricePerM3, string(tier.Classification),
		nullString(tier.Region), tier.Tax, tier.ServiceFee, tier.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a tier.
func (r *RateRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rate_id = $1`, r.table), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *RateRepository) insert(ctx context.Context, db postgres.DBTX, tier *rating.RateTier) error {
	query := fmt.Sprintf(`
INSERT INTO %s (usage_tier_start, usage_tier_end, price_per_m3, customer_type, region, tax, service_fee)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING rate_id`, r.table)
	return db.QueryRowContext(ctx, query,
		tier.UsageStart, tier.UsageEnd, tier.PricePerM3, string(tier.Classification),
		nullString(tier.Region), tier.Tax, tier.ServiceFee,
	).Scan(&tier.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTier(row rowScanner) (rating.RateTier, error) {
	var tier rating.RateTier
	var classification string
	var region sql.NullString
	if err := row.Scan(
		&tier.ID,
		&tier.UsageStart,
		&tier.UsageEnd,
		&tier.PricePerM3,
		&classification,
		&region,
		&tier.Tax,
		&tier.ServiceFee,
	); err != nil {
		return rating.RateTier{}, err
	}
	tier.Classification = rating.NormalizeClassification(classification)
	if region.Valid {
		tier.Region = region.String
	}
	return tier, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rating.ErrRateNotFound
	}
	return nil
}
