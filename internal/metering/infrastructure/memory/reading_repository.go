package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	metering "waterbill/internal/metering/domain"
)

// ReadingRepository keeps readings in memory.
type ReadingRepository struct {
	mu       sync.RWMutex
	nextID   int64
	readings []metering.Reading
}

// NewReadingRepository constructs an empty repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{}
}

// Insert stores readings and assigns ids.
func (r *ReadingRepository) Insert(ctx context.Context, readings []metering.Reading) ([]metering.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]metering.Reading, 0, len(readings))
	for _, reading := range readings {
		r.nextID++
		reading.ID = r.nextID
		reading.ReadingDate = reading.ReadingDate.UTC()
		r.readings = append(r.readings, reading)
		stored = append(stored, reading)
	}
	return stored, nil
}

// ListByMeter returns a meter's readings in the range ordered by date.
func (r *ReadingRepository) ListByMeter(ctx context.Context, meterID int64, period metering.Range) ([]metering.Reading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := lo.Filter(r.readings, func(reading metering.Reading, _ int) bool {
		return reading.MeterID == meterID && period.Contains(reading.ReadingDate)
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].ReadingDate.Before(result[j].ReadingDate) })
	return result, nil
}

// SumByMeters totals usage of meters in the range.
func (r *ReadingRepository) SumByMeters(ctx context.Context, meterIDs []int64, period metering.Range) (float64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(r.readings, func(reading metering.Reading) float64 {
		if !lo.Contains(meterIDs, reading.MeterID) || !period.Contains(reading.ReadingDate) {
			return 0
		}
		return reading.Usage
	}), nil
}

// All returns every stored reading.
func (r *ReadingRepository) All() []metering.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]metering.Reading(nil), r.readings...)
}
