package auth

import (
	"context"
	"database/sql"
	"errors"
)

// AdminRepository stores admin users in Postgres.
type AdminRepository struct {
	db *sql.DB
}

// NewAdminRepository constructs an admin repository.
func NewAdminRepository(db *sql.DB) *AdminRepository {
	if db == nil {
		return nil
	}
	return &AdminRepository{db: db}
}

// FindByEmail loads an admin by email.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*AdminUser, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("admin repo: nil db")
	}
	var user AdminUser
	var role string
	err := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, role, created_at
FROM admin_users
WHERE email = $1
LIMIT 1`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.Role = Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// Create inserts an admin user.
func (r *AdminRepository) Create(ctx context.Context, user *AdminUser) error {
	if r == nil || r.db == nil {
		return errors.New("admin repo: nil db")
	}
	if user == nil {
		return errors.New("admin repo: nil user")
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO admin_users (email, password_hash, role, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO NOTHING
RETURNING id`, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt).Scan(&user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicateAdmin
	}
	return err
}
