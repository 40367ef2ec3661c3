package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"waterbill/internal/observability/metrics"
	rating "waterbill/internal/rating/domain"
)

const tiersCacheKey = "rates:all"

// QuoteRequest asks for the charge of a usage quantity.
type QuoteRequest struct {
	Usage          float64 `json:"usage"`
	Classification string  `json:"customer_type"`
	Region         string  `json:"region,omitempty"`
}

// RateService manages the rate table and prices usage against it.
type RateService struct {
	repo    rating.Repository
	cache   *cache.Cache
	logger  *zap.Logger
	writeMu sync.Mutex
	// cacheMu guards generation, which every write bumps. A table read
	// under an older generation is not cached.
	cacheMu    sync.Mutex
	generation uint64
}

// Option configures the service.
type Option func(*RateService)

// WithCacheTTL sets how long the tier table is cached between writes.
// A zero ttl disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *RateService) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *RateService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRateService constructs a rate service.
func NewRateService(repo rating.Repository, opts ...Option) (*RateService, error) {
	if repo == nil {
		return nil, errors.New("rate service: nil repo")
	}
	s := &RateService{
		repo:   repo,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns every tier in rate_id order.
func (s *RateService) List(ctx context.Context) ([]rating.RateTier, error) {
	return s.repo.List(ctx)
}

// Get loads a tier.
func (s *RateService) Get(ctx context.Context, id int64) (*rating.RateTier, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: rate id must be positive", rating.ErrInvalidInput)
	}
	tier, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, rating.ErrRateNotFound
	}
	return tier, nil
}

// Create validates and stores a new tier. A tier overlapping an existing
// tier of the same classification and region is rejected.
func (s *RateService) Create(ctx context.Context, tier rating.RateTier) (rating.RateTier, error) {
	tier.ID = 0
	tier.Classification = rating.NormalizeClassification(string(tier.Classification))
	if err := tier.Validate(); err != nil {
		return rating.RateTier{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	existing, err := s.repo.List(ctx)
	if err != nil {
		return rating.RateTier{}, err
	}
	if err := checkOverlap(tier, existing); err != nil {
		return rating.RateTier{}, err
	}
	if err := s.repo.Create(ctx, &tier); err != nil {
		return rating.RateTier{}, err
	}
	s.invalidate()
	s.logger.Info("rate created", zap.Int64("rate_id", tier.ID), zap.String("customer_type", tier.Classification.String()))
	return tier, nil
}

// Update replaces an existing tier.
func (s *RateService) Update(ctx context.Context, tier rating.RateTier) (rating.RateTier, error) {
	tier.Classification = rating.NormalizeClassification(string(tier.Classification))
	if err := tier.Validate(); err != nil {
		return rating.RateTier{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.Get(ctx, tier.ID); err != nil {
		return rating.RateTier{}, err
	}
	existing, err := s.repo.List(ctx)
	if err != nil {
		return rating.RateTier{}, err
	}
	if err := checkOverlap(tier, existing); err != nil {
		return rating.RateTier{}, err
	}
	if err := s.repo.Update(ctx, tier); err != nil {
		return rating.RateTier{}, err
	}
	s.invalidate()
	s.logger.Info("rate updated", zap.Int64("rate_id", tier.ID))
	return tier, nil
}

// Delete removes a tier.
func (s *RateService) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("rate deleted", zap.Int64("rate_id", id))
	return nil
}

// Import stores tiers all-or-nothing after validating them together with
// the existing table.
func (s *RateService) Import(ctx context.Context, tiers []rating.RateTier) ([]rating.RateTier, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no rates to import", rating.ErrInvalidInput)
	}
	incoming := make([]rating.RateTier, len(tiers))
	for i, tier := range tiers {
		tier.ID = 0
		tier.Classification = rating.NormalizeClassification(string(tier.Classification))
		incoming[i] = tier
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	existing, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := rating.ValidateTable(append(append([]rating.RateTier(nil), existing...), incoming...)); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateMany(ctx, incoming)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.Info("rates imported", zap.Int("count", len(created)))
	return created, nil
}

// Tiers returns the current table, served from cache when warm.
func (s *RateService) Tiers(ctx context.Context) ([]rating.RateTier, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(tiersCacheKey); ok {
			return cached.([]rating.RateTier), nil
		}
	}
	s.cacheMu.Lock()
	gen := s.generation
	s.cacheMu.Unlock()
	tiers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cacheMu.Lock()
		if s.generation == gen {
			s.cache.SetDefault(tiersCacheKey, tiers)
		}
		s.cacheMu.Unlock()
	}
	return tiers, nil
}

// Quote prices usage for a customer type and optional region. An unmatched
// usage yields an unpriced result, not an error.
func (s *RateService) Quote(ctx context.Context, req QuoteRequest) (rating.CostResult, error) {
	query := rating.Query{
		Usage:          req.Usage,
		Classification: rating.NormalizeClassification(req.Classification),
		Region:         req.Region,
	}
	if err := rating.ValidateUsage(query.Usage); err != nil {
		metrics.IncQuote(metrics.QuoteResultInvalid)
		return rating.CostResult{}, err
	}
	tiers, err := s.Tiers(ctx)
	if err != nil {
		return rating.CostResult{}, err
	}
	result, err := rating.Compute(query, tiers)
	if err != nil {
		metrics.IncQuote(metrics.QuoteResultInvalid)
		return rating.CostResult{}, err
	}
	if !result.Priced() {
		metrics.IncQuote(metrics.QuoteResultUnpriced)
		s.logger.Debug("usage not covered by any rate",
			zap.Float64("usage", query.Usage),
			zap.String("customer_type", query.Classification.String()),
			zap.String("region", query.Region),
		)
		return result, nil
	}
	metrics.IncQuote(metrics.QuoteResultPriced)
	return result, nil
}

func (s *RateService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Delete(tiersCacheKey)
	}
}

func checkOverlap(tier rating.RateTier, existing []rating.RateTier) error {
	for _, other := range existing {
		if other.ID == tier.ID {
			continue
		}
		if tier.Overlaps(other) {
			return fmt.Errorf("%w: %s", rating.ErrOverlappingTiers, rating.Overlap{First: other, Second: tier})
		}
	}
	return nil
}
