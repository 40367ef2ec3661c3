package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"waterbill/internal/audit"
	rateapp "waterbill/internal/rating/application"
	rating "waterbill/internal/rating/domain"
	"waterbill/internal/rating/infrastructure/yamlfile"
)

const basePath = "/api/v1/rates"

// Handler serves rate table and quote APIs.
type Handler struct {
	service     *rateapp.RateService
	auditLogger audit.Logger
	logger      *zap.Logger
	currency    string
}

// NewHandler constructs a handler.
func NewHandler(service *rateapp.RateService, auditLogger audit.Logger, logger *zap.Logger, currency string) (*Handler, error) {
	if service == nil {
		return nil, errors.New("rate handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger, currency: currency}, nil
}

// ServeHTTP handles routes under /api/v1/rates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == basePath && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == basePath && r.Method == http.MethodPost:
		h.handleCreate(w, r)
		return
	case path == basePath+"/quote" && r.Method == http.MethodPost:
		h.handleQuote(w, r)
		return
	case path == basePath+"/import" && r.Method == http.MethodPost:
		h.handleImport(w, r)
		return
	case path == basePath+"/export.yaml" && r.Method == http.MethodGet:
		h.handleExport(w, r)
		return
	case strings.HasPrefix(path, basePath+"/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(path, basePath+"/"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
			return
		case http.MethodPut:
			h.handleUpdate(w, r, id)
			return
		case http.MethodDelete:
			h.handleDelete(w, r, id)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if tiers == nil {
		tiers = []rating.RateTier{}
	}
	writeJSON(w, http.StatusOK, tiers)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	tier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tier)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var tier rating.RateTier
	if err := json.NewDecoder(r.Body).Decode(&tier); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(r.Context(), tier)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
	audit.Record(h.auditLogger, r, "rate.create", "rate", strconv.FormatInt(created.ID, 10), tierMeta(created))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var tier rating.RateTier
	if err := json.NewDecoder(r.Body).Decode(&tier); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tier.ID = id
	updated, err := h.service.Update(r.Context(), tier)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
	audit.Record(h.auditLogger, r, "rate.update", "rate", strconv.FormatInt(id, 10), tierMeta(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	audit.Record(h.auditLogger, r, "rate.delete", "rate", strconv.FormatInt(id, 10), nil)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	tiers, err := yamlfile.Decode(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.service.Import(r.Context(), tiers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
	audit.Record(h.auditLogger, r, "rate.import", "rate", "", map[string]any{"count": len(created)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="rates.yaml"`)
	w.WriteHeader(http.StatusOK)
	if err := yamlfile.Encode(w, tiers); err != nil {
		h.logger.Warn("rate export failed", zap.Error(err))
	}
}

type quoteRequest struct {
	Usage          json.RawMessage `json:"usage"`
	Classification string          `json:"customer_type"`
	Region         string          `json:"region"`
}

type quoteResponse struct {
	rating.CostResult
	Currency string `json:"currency,omitempty"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	usage, err := parseUsageField(req.Usage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	result, err := h.service.Quote(r.Context(), rateapp.QuoteRequest{
		Usage:          usage,
		Classification: req.Classification,
		Region:         req.Region,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{CostResult: result, Currency: h.currency})
}

// parseUsageField accepts usage as a JSON number or as typed text.
func parseUsageField(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: usage is required", rating.ErrInvalidInput)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return rating.ParseUsage(text)
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, fmt.Errorf("%w: usage is not a number", rating.ErrInvalidInput)
	}
	if err := rating.ValidateUsage(number); err != nil {
		return 0, err
	}
	return number, nil
}

func tierMeta(tier rating.RateTier) map[string]any {
	return map[string]any{
		"customer_type":    tier.Classification,
		"region":           tier.Region,
		"usage_tier_start": tier.UsageStart,
		"usage_tier_end":   tier.UsageEnd,
		"price_per_m3":     tier.PricePerM3.String(),
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rating.ErrInvalidInput), errors.Is(err, rating.ErrInvalidTier):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, rating.ErrRateNotFound):
		http.Error(w, "rate not found", http.StatusNotFound)
	case errors.Is(err, rating.ErrOverlappingTiers):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("rate request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
