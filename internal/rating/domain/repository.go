package rating

import "context"

// Repository persists rate tiers. List returns tiers in rate_id order so
// first-match selection is deterministic.
type Repository interface {
	List(ctx context.Context) ([]RateTier, error)
	Get(ctx context.Context, id int64) (*RateTier, error)
	Create(ctx context.Context, tier *RateTier) error
	Update(ctx context.Context, tier RateTier) error
	Delete(ctx context.Context, id int64) error
	CreateMany(ctx context.Context, tiers []RateTier) ([]RateTier, error)
}
