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
	"waterbill/internal/masterdata/application"
	masterdata "waterbill/internal/masterdata/domain"
)

const (
	customersPath       = "/api/v1/customers"
	accountTypesPath    = "/api/v1/account-types"
	accountStatusesPath = "/api/v1/account-statuses"
)

// Handler serves customer, meter and lookup APIs.
type Handler struct {
	service     *application.CustomerService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.CustomerService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("customer handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles customer routes and the account lookups.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == accountTypesPath && r.Method == http.MethodGet:
		h.handleAccountTypes(w, r)
		return
	case path == accountStatusesPath && r.Method == http.MethodGet:
		h.handleAccountStatuses(w, r)
		return
	case path == customersPath && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == customersPath && r.Method == http.MethodPost:
		h.handleCreate(w, r)
		return
	case strings.HasPrefix(path, customersPath+"/"):
		parts := strings.Split(strings.TrimPrefix(path, customersPath+"/"), "/")
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if len(parts) == 1 {
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
		if len(parts) == 2 && parts[1] == "meters" {
			switch r.Method {
			case http.MethodGet:
				h.handleMeters(w, r, id)
				return
			case http.MethodPost:
				h.handleAddMeter(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := masterdata.CustomerFilter{
		Search:      q.Get("q"),
		AccountType: q.Get("type"),
		Status:      q.Get("status"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}
	customers, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if customers == nil {
		customers = []masterdata.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type createResponse struct {
	*masterdata.Customer
	Meter *masterdata.Meter `json:"meter"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	customer, meter, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Customer: customer, Meter: meter})
	audit.Record(h.auditLogger, r, "customer.create", "customer", strconv.FormatInt(customer.ID, 10), map[string]any{
		"account_type": customer.AccountType,
		"meter_number": meter.MeterNumber,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var req application.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	customer, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
	audit.Record(h.auditLogger, r, "customer.update", "customer", strconv.FormatInt(id, 10), map[string]any{
		"account_type":   customer.AccountType,
		"account_status": customer.AccountStatus,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	audit.Record(h.auditLogger, r, "customer.delete", "customer", strconv.FormatInt(id, 10), nil)
}

func (h *Handler) handleMeters(w http.ResponseWriter, r *http.Request, customerID int64) {
	meters, err := h.service.Meters(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if meters == nil {
		meters = []masterdata.Meter{}
	}
	writeJSON(w, http.StatusOK, meters)
}

type addMeterRequest struct {
	MeterNumber      string    `json:"meter_number"`
	InstallationDate time.Time `json:"installation_date"`
}

func (h *Handler) handleAddMeter(w http.ResponseWriter, r *http.Request, customerID int64) {
	var req addMeterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	meter, err := h.service.AddMeter(r.Context(), customerID, req.MeterNumber, req.InstallationDate)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meter)
	audit.Record(h.auditLogger, r, "meter.create", "meter", strconv.FormatInt(meter.ID, 10), map[string]any{
		"customer_id":  customerID,
		"meter_number": meter.MeterNumber,
	})
}

func (h *Handler) handleAccountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.AccountTypes(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handler) handleAccountStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.AccountStatuses(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, masterdata.ErrInvalidCustomer), errors.Is(err, masterdata.ErrUnknownAccountType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, masterdata.ErrCustomerNotFound):
		http.Error(w, "customer not found", http.StatusNotFound)
	case errors.Is(err, masterdata.ErrMeterNotFound):
		http.Error(w, "meter not found", http.StatusNotFound)
	case errors.Is(err, masterdata.ErrDuplicateEmail), errors.Is(err, masterdata.ErrDuplicateMeter),
		errors.Is(err, masterdata.ErrCustomerHasBills):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("customer request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
