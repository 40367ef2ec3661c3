package rating

import "errors"

var (
	// ErrInvalidInput is returned when usage is negative, NaN, infinite or unparseable.
	ErrInvalidInput = errors.New("rating: invalid input")
	// ErrNoTierMatched is returned by callers that require a price when no tier covers the usage.
	ErrNoTierMatched = errors.New("rating: no tier matched")
	// ErrInvalidTier is returned when a rate tier violates its invariants.
	ErrInvalidTier = errors.New("rating: invalid tier")
	// ErrOverlappingTiers is returned when two tiers of the same classification and region overlap.
	ErrOverlappingTiers = errors.New("rating: overlapping tiers")
	// ErrRateNotFound is returned when a rate tier is not found.
	ErrRateNotFound = errors.New("rating: rate not found")
)
