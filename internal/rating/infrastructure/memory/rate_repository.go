package memory

import (
	"context"
	"sort"
	"sync"

	rating "waterbill/internal/rating/domain"
)

// RateRepository is an in-memory repository for rate tiers.
type RateRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]rating.RateTier
}

// NewRateRepository constructs a repository seeded with tiers. Seed tiers
// without an id are assigned one.
func NewRateRepository(seed ...rating.RateTier) *RateRepository {
	repo := &RateRepository{data: make(map[int64]rating.RateTier)}
	for _, tier := range seed {
		tier := tier
		if tier.ID == 0 {
			repo.nextID++
			tier.ID = repo.nextID
		} else if tier.ID > repo.nextID {
			repo.nextID = tier.ID
		}
		repo.data[tier.ID] = tier
	}
	return repo
}

// List returns tiers ordered by id.
func (r *RateRepository) List(ctx context.Context) ([]rating.RateTier, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]rating.RateTier, 0, len(r.data))
	for _, tier := range r.data {
		result = append(result, tier)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Get loads a tier by id.
func (r *RateRepository) Get(ctx context.Context, id int64) (*rating.RateTier, error) {
	_ = ctx
	r.mu.RLock()
	tier, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &tier, nil
}

// Create stores a tier and assigns its id.
func (r *RateRepository) Create(ctx context.Context, tier *rating.RateTier) error {
	_ = ctx
	r.mu.Lock()
	r.nextID++
	tier.ID = r.nextID
	r.data[tier.ID] = *tier
	r.mu.Unlock()
	return nil
}

// CreateMany stores tiers atomically.
func (r *RateRepository) CreateMany(ctx context.Context, tiers []rating.RateTier) ([]rating.RateTier, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	created := make([]rating.RateTier, 0, len(tiers))
	for _, tier := range tiers {
		r.nextID++
		tier.ID = r.nextID
		r.data[tier.ID] = tier
		created = append(created, tier)
	}
	return created, nil
}

// Update overwrites a tier.
func (r *RateRepository) Update(ctx context.Context, tier rating.RateTier) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[tier.ID]; !ok {
		return rating.ErrRateNotFound
	}
	r.data[tier.ID] = tier
	return nil
}

// Delete removes a tier.
func (r *RateRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return rating.ErrRateNotFound
	}
	delete(r.data, id)
	return nil
}
