package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/audit"
	masterdata "waterbill/internal/masterdata/domain"
	"waterbill/internal/metering/application"
	metering "waterbill/internal/metering/domain"
)

const basePath = "/api/v1/readings"

// Handler serves reading APIs.
type Handler struct {
	service     *application.ReadingService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.ReadingService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reading handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSuffix(r.URL.Path, "/") != basePath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleRecord(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req application.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	reading, err := h.service.Record(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reading)
	audit.Record(h.auditLogger, r, "reading.create", "reading", strconv.FormatInt(reading.ID, 10), map[string]any{
		"meter_id":    reading.MeterID,
		"water_usage": reading.Usage,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	meterID, err := strconv.ParseInt(q.Get("meter_id"), 10, 64)
	if err != nil || meterID <= 0 {
		http.Error(w, "meter_id is required", http.StatusBadRequest)
		return
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	readings, err := h.service.ListByMeter(r.Context(), meterID, from, to)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if readings == nil {
		readings = []metering.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, metering.ErrInvalidReading), errors.Is(err, metering.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, masterdata.ErrMeterNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error("reading request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
