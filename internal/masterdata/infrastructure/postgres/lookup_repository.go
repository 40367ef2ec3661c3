package postgres

import (
	"context"
	"errors"
	"fmt"

	masterdata "waterbill/internal/masterdata/domain"
	"waterbill/internal/storage/postgres"
)

// LookupRepository reads account lookup tables.
type LookupRepository struct {
	db postgres.DBTX
}

// NewLookupRepository constructs a repository.
func NewLookupRepository(db postgres.DBTX) *LookupRepository {
	return &LookupRepository{db: db}
}

// AccountTypes lists account types by id.
func (r *LookupRepository) AccountTypes(ctx context.Context) ([]masterdata.AccountType, error) {
	rows, err := r.list(ctx, "account_types", "account_type_id")
	if err != nil {
		return nil, err
	}
	result := make([]masterdata.AccountType, 0, len(rows))
	for _, row := range rows {
		result = append(result, masterdata.AccountType{ID: row.id, Name: row.name})
	}
	return result, nil
}

// AccountStatuses lists account statuses by id.
func (r *LookupRepository) AccountStatuses(ctx context.Context) ([]masterdata.AccountStatus, error) {
	rows, err := r.list(ctx, "account_statuses", "account_status_id")
	if err != nil {
		return nil, err
	}
	result := make([]masterdata.AccountStatus, 0, len(rows))
	for _, row := range rows {
		result = append(result, masterdata.AccountStatus{ID: row.id, Name: row.name})
	}
	return result, nil
}

type lookupRow struct {
	id   int64
	name string
}

func (r *LookupRepository) list(ctx context.Context, table, idColumn string) ([]lookupRow, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("lookup repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, name FROM %s ORDER BY %s ASC`, idColumn, table, idColumn))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lookupRow
	for rows.Next() {
		var row lookupRow
		if err := rows.Scan(&row.id, &row.name); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
