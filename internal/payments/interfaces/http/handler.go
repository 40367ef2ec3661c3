package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"waterbill/internal/audit"
	billing "waterbill/internal/billing/domain"
	"waterbill/internal/payments/application"
	payments "waterbill/internal/payments/domain"
)

const (
	paymentsPath = "/api/v1/payments"
	methodsPath  = "/api/v1/payment-methods"
)

// Handler serves payment APIs.
type Handler struct {
	service     *application.PaymentService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.PaymentService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("payment handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles payment and payment method routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == methodsPath && r.Method == http.MethodGet:
		h.handleMethods(w, r)
	case path == paymentsPath && r.Method == http.MethodPost:
		h.handleRecord(w, r)
	case path == paymentsPath && r.Method == http.MethodGet:
		h.handleHistory(w, r)
	case path == paymentsPath+"/recent" && r.Method == http.MethodGet:
		h.handleRecent(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type recordResponse struct {
	Payment *payments.Payment `json:"payment"`
	Bill    *billing.Bill     `json:"bill"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req application.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	payment, bill, err := h.service.Record(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{Payment: payment, Bill: bill})
	audit.Record(h.auditLogger, r, "payment.create", "payment", strconv.FormatInt(payment.ID, 10), map[string]any{
		"bill_id":     payment.BillID,
		"customer_id": payment.CustomerID,
		"amount":      payment.Amount.StringFixed(2),
		"method":      payment.Method,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	if err != nil {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}
	list, err := h.service.History(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []payments.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []payments.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.Methods(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrInvalidPayment), errors.Is(err, payments.ErrUnknownMethod),
		errors.Is(err, billing.ErrInvalidPayment), errors.Is(err, billing.ErrCustomerMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrBillNotFound):
		http.Error(w, "bill not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrBillClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("payment request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
