package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	rating "waterbill/internal/rating/domain"
)

var (
	ErrInvalidReading = errors.New("metering: invalid reading")
	ErrInvalidRange   = errors.New("metering: invalid time range")
)

// Reading is a metered water usage in cubic meters.
type Reading struct {
	ID          int64     `json:"usage_id"`
	MeterID     int64     `json:"meter_id"`
	ReadingDate time.Time `json:"reading_date"`
	Usage       float64   `json:"water_usage"`
}

// Validate checks the reading against the calculator's usage rules.
func (r Reading) Validate() error {
	if r.MeterID <= 0 {
		return fmt.Errorf("%w: meter_id is required", ErrInvalidReading)
	}
	if r.ReadingDate.IsZero() {
		return fmt.Errorf("%w: reading_date is required", ErrInvalidReading)
	}
	if err := rating.ValidateUsage(r.Usage); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	return nil
}

// Range is a half-open [From, To) interval. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// Validate rejects inverted ranges.
func (r Range) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidRange, r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Repository persists readings.
type Repository interface {
	Insert(ctx context.Context, readings []Reading) ([]Reading, error)
	ListByMeter(ctx context.Context, meterID int64, period Range) ([]Reading, error)
	SumByMeters(ctx context.Context, meterIDs []int64, period Range) (float64, error)
}
