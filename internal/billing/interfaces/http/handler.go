package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/audit"
	"waterbill/internal/billing/application"
	billing "waterbill/internal/billing/domain"
	"waterbill/internal/billing/export"
)

const basePath = "/api/v1/bills"

// Handler serves bill APIs.
type Handler struct {
	service     *application.BillService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.BillService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("bill handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles routes under /api/v1/bills.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == basePath && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == basePath+"/generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
		return
	case strings.HasPrefix(path, basePath+"/"):
		parts := strings.Split(strings.TrimPrefix(path, basePath+"/"), "/")
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.handleGet(w, r, id)
			return
		case len(parts) == 2 && parts[1] == "void" && r.Method == http.MethodPost:
			h.handleVoid(w, r, id)
			return
		case len(parts) == 2 && strings.HasPrefix(parts[1], "export.") && r.Method == http.MethodGet:
			h.handleExport(w, r, id, strings.TrimPrefix(parts[1], "export."))
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

type generateRequest struct {
	CustomerIDs []int64 `json:"customer_ids"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Month       string  `json:"month"`
	BillDate    string  `json:"bill_date"`
}

func (req generateRequest) toRequest() (application.GenerateRequest, error) {
	out := application.GenerateRequest{CustomerIDs: req.CustomerIDs}
	if req.Month != "" {
		month, err := time.Parse("2006-01", req.Month)
		if err != nil {
			return out, fmt.Errorf("%w: month must be YYYY-MM", billing.ErrInvalidPeriod)
		}
		period := billing.MonthPeriod(month)
		out.PeriodStart, out.PeriodEnd = period.Start, period.End
	} else {
		var err error
		if out.PeriodStart, err = parseTime(req.PeriodStart); err != nil {
			return out, fmt.Errorf("%w: period_start", billing.ErrInvalidPeriod)
		}
		if out.PeriodEnd, err = parseTime(req.PeriodEnd); err != nil {
			return out, fmt.Errorf("%w: period_end", billing.ErrInvalidPeriod)
		}
	}
	billDate, err := parseTime(req.BillDate)
	if err != nil {
		return out, fmt.Errorf("%w: bill_date", billing.ErrInvalidPeriod)
	}
	out.BillDate = billDate
	return out, nil
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
	audit.Record(h.auditLogger, r, "bill.generate", "bill", "", map[string]any{
		"period_start": req.PeriodStart.Format(time.RFC3339),
		"period_end":   req.PeriodEnd.Format(time.RFC3339),
		"generated":    len(result.Generated),
		"skipped":      len(result.Skipped),
		"failed":       len(result.Failed),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter billing.Filter
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid customer_id", http.StatusBadRequest)
			return
		}
		filter.CustomerID = id
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := billing.ParseStatus(raw)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	bills, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if bills == nil {
		bills = []billing.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	bill, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request, id int64) {
	var req voidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}
	bill, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
	audit.Record(h.auditLogger, r, "bill.void", "bill", strconv.FormatInt(id, 10), map[string]any{"reason": bill.VoidReason})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, id int64, format string) {
	doc, err := h.service.Export(r.Context(), id, format)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
	audit.Record(h.auditLogger, r, "bill.export", "bill", strconv.FormatInt(id, 10), map[string]any{"format": format})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, export.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, billing.ErrBillNotFound):
		http.Error(w, "bill not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrBillClosed), errors.Is(err, billing.ErrAlreadyBilled):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("bill request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
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

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
