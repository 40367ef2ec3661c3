package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/metering/application"
	"waterbill/internal/observability/metrics"
)

// IngestPath receives signed batches from meter gateways.
const IngestPath = "/api/v1/readings/ingest"

const maxIngestBody = 1 << 20

// IngestHandler records readings pushed by meter gateways.
type IngestHandler struct {
	service *application.ReadingService
	logger  *zap.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *application.ReadingService, logger *zap.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("reading ingest: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP ingests a batch of readings.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	result := metrics.ResultError
	defer func() { metrics.ObserveReadingIngest(result, time.Since(start)) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		h.logger.Warn("reading ingest: read body", zap.Error(err))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("reading ingest: decode", zap.Error(err))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	reqs, err := req.toRecordRequests()
	if err != nil {
		h.logger.Warn("reading ingest: invalid payload", zap.Error(err))
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := h.service.RecordBatch(r.Context(), reqs)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	result = metrics.ResultSuccess
	h.logger.Info("readings ingested", zap.Int("inserted", len(stored)))
	writeJSON(w, http.StatusOK, map[string]any{"inserted": len(stored)})
}

type ingestRequest struct {
	MeterNumber string        `json:"meter_number"`
	TS          int64         `json:"ts"`
	Usage       *float64      `json:"usage"`
	Points      []ingestPoint `json:"points"`
}

type ingestPoint struct {
	MeterNumber string   `json:"meter_number"`
	TS          int64    `json:"ts"`
	Usage       *float64 `json:"usage"`
}

func (r ingestRequest) toRecordRequests() ([]application.RecordRequest, error) {
	points := r.Points
	if len(points) == 0 && r.TS != 0 {
		points = []ingestPoint{{TS: r.TS, Usage: r.Usage}}
	}
	if len(points) == 0 {
		return nil, errors.New("no readings")
	}
	reqs := make([]application.RecordRequest, 0, len(points))
	for _, point := range points {
		number := point.MeterNumber
		if number == "" {
			number = r.MeterNumber
		}
		if number == "" {
			return nil, errors.New("missing meter_number")
		}
		ts, err := parseTimestamp(point.TS)
		if err != nil {
			return nil, err
		}
		if point.Usage == nil {
			return nil, errors.New("missing usage")
		}
		reqs = append(reqs, application.RecordRequest{MeterNumber: number, ReadingDate: ts, Usage: *point.Usage})
	}
	return reqs, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
