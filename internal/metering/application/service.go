package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	masterdata "waterbill/internal/masterdata/domain"
	metering "waterbill/internal/metering/domain"
)

// RecordRequest identifies a meter by id or by number.
type RecordRequest struct {
	MeterID     int64     `json:"meter_id"`
	MeterNumber string    `json:"meter_number"`
	ReadingDate time.Time `json:"reading_date"`
	Usage       float64   `json:"water_usage"`
}

// ReadingService records and aggregates water usage.
type ReadingService struct {
	repo   metering.Repository
	meters masterdata.MeterRepository
	logger *zap.Logger
}

// NewReadingService constructs a reading service.
func NewReadingService(repo metering.Repository, meters masterdata.MeterRepository, logger *zap.Logger) (*ReadingService, error) {
	if repo == nil {
		return nil, errors.New("reading service: nil repo")
	}
	if meters == nil {
		return nil, errors.New("reading service: nil meter repo")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingService{repo: repo, meters: meters, logger: logger}, nil
}

// Record stores one reading.
func (s *ReadingService) Record(ctx context.Context, req RecordRequest) (metering.Reading, error) {
	stored, err := s.RecordBatch(ctx, []RecordRequest{req})
	if err != nil {
		return metering.Reading{}, err
	}
	return stored[0], nil
}

// RecordBatch validates every reading before storing any of them.
func (s *ReadingService) RecordBatch(ctx context.Context, reqs []RecordRequest) ([]metering.Reading, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no readings", metering.ErrInvalidReading)
	}
	byNumber := make(map[string]int64)
	readings := make([]metering.Reading, 0, len(reqs))
	for i, req := range reqs {
		meterID, err := s.resolveMeter(ctx, req, byNumber)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		reading := metering.Reading{MeterID: meterID, ReadingDate: req.ReadingDate.UTC(), Usage: req.Usage}
		if err := reading.Validate(); err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, reading)
	}
	stored, err := s.repo.Insert(ctx, readings)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("readings recorded", zap.Int("count", len(stored)))
	return stored, nil
}

func (s *ReadingService) resolveMeter(ctx context.Context, req RecordRequest, cache map[string]int64) (int64, error) {
	if req.MeterID > 0 {
		meter, err := s.meters.Get(ctx, req.MeterID)
		if err != nil {
			return 0, err
		}
		if meter == nil {
			return 0, masterdata.ErrMeterNotFound
		}
		return meter.ID, nil
	}
	number := strings.TrimSpace(req.MeterNumber)
	if number == "" {
		return 0, fmt.Errorf("%w: meter_id or meter_number is required", metering.ErrInvalidReading)
	}
	if id, ok := cache[number]; ok {
		return id, nil
	}
	meter, err := s.meters.FindByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	if meter == nil {
		return 0, fmt.Errorf("%w: %s", masterdata.ErrMeterNotFound, number)
	}
	cache[number] = meter.ID
	return meter.ID, nil
}

// ListByMeter returns a meter's readings in [from, to).
func (s *ReadingService) ListByMeter(ctx context.Context, meterID int64, from, to time.Time) ([]metering.Reading, error) {
	period := metering.Range{From: from, To: to}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	meter, err := s.meters.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, masterdata.ErrMeterNotFound
	}
	return s.repo.ListByMeter(ctx, meterID, period)
}

// UsageForCustomer sums readings of all the customer's meters in [from, to).
func (s *ReadingService) UsageForCustomer(ctx context.Context, customerID int64, from, to time.Time) (float64, error) {
	period := metering.Range{From: from, To: to}
	if err := period.Validate(); err != nil {
		return 0, err
	}
	meters, err := s.meters.ListByCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}
	ids := lo.Map(meters, func(m masterdata.Meter, _ int) int64 { return m.ID })
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.SumByMeters(ctx, ids, period)
}
