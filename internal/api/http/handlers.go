package apihttp

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"waterbill/internal/reports"
)

const timeLayout = time.RFC3339

var billColumns = []string{
	"bill_id",
	"customer_id",
	"customer_name",
	"bill_date",
	"due_date",
	"period_start",
	"period_end",
	"usage_m3",
	"total_amount",
	"paid_amount",
	"currency",
	"status",
}

// DashboardHandler serves GET /api/v1/reports/dashboard.
type DashboardHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(service *reports.Service, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{service: service, logger: logger}
}

// ServeHTTP returns the dashboard figures.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard query failed", zap.Error(err))
		http.Error(w, "query dashboard error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dashboard)
}

// UsageChartHandler serves GET /api/v1/reports/usage?months=N.
type UsageChartHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewUsageChartHandler constructs a UsageChartHandler.
func NewUsageChartHandler(service *reports.Service, logger *zap.Logger) *UsageChartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageChartHandler{service: service, logger: logger}
}

// ServeHTTP returns monthly usage totals.
func (h *UsageChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	months := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "months must be an integer", http.StatusBadRequest)
			return
		}
		months = parsed
	}
	points, err := h.service.UsageChart(r.Context(), months)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidRange) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("usage chart query failed", zap.Error(err))
		http.Error(w, "query usage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(points)
}

// ExportBillsCSVHandler serves GET /api/v1/exports/bills.csv.
type ExportBillsCSVHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewExportBillsCSVHandler constructs an ExportBillsCSVHandler.
func NewExportBillsCSVHandler(service *reports.Service, logger *zap.Logger) *ExportBillsCSVHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportBillsCSVHandler{service: service, logger: logger}
}

// ServeHTTP writes bills dated in [from, to) as CSV.
func (h *ExportBillsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rows, ok := loadBills(w, r, h.service, h.logger)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bills.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write(billColumns)
	for _, row := range rows {
		_ = writer.Write([]string{
			formatInt(row.BillID),
			formatInt(row.CustomerID),
			row.CustomerName,
			formatTime(row.BillDate),
			formatTime(row.DueDate),
			formatTime(row.PeriodStart),
			formatTime(row.PeriodEnd),
			formatFloat(row.UsageM3),
			row.TotalAmount.StringFixed(2),
			row.PaidAmount.StringFixed(2),
			row.Currency,
			row.Status,
		})
	}
	writer.Flush()
}

// ExportBillsXLSXHandler serves GET /api/v1/exports/bills.xlsx.
type ExportBillsXLSXHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewExportBillsXLSXHandler constructs an ExportBillsXLSXHandler.
func NewExportBillsXLSXHandler(service *reports.Service, logger *zap.Logger) *ExportBillsXLSXHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportBillsXLSXHandler{service: service, logger: logger}
}

// ServeHTTP writes bills dated in [from, to) as a spreadsheet.
func (h *ExportBillsXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rows, ok := loadBills(w, r, h.service, h.logger)
	if !ok {
		return
	}
	body, err := buildBillsXLSX(rows)
	if err != nil {
		h.logger.Error("bills xlsx failed", zap.Error(err))
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bills.xlsx"`)
	_, _ = w.Write(body)
}

func loadBills(w http.ResponseWriter, r *http.Request, service *reports.Service, logger *zap.Logger) ([]reports.BillRow, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	if service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return nil, false
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return nil, false
	}
	rows, err := service.Bills(r.Context(), from, to)
	if err != nil {
		logger.Error("bills export query failed", zap.Error(err))
		http.Error(w, "query bills error", http.StatusInternalServerError)
		return nil, false
	}
	return rows, true
}

func buildBillsXLSX(rows []reports.BillRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "bills"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, name := range billColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, name)
	}
	for i, row := range rows {
		n := i + 2
		total, _ := row.TotalAmount.Float64()
		paid, _ := row.PaidAmount.Float64()
		values := []any{
			row.BillID, row.CustomerID, row.CustomerName,
			formatTime(row.BillDate), formatTime(row.DueDate), formatTime(row.PeriodStart), formatTime(row.PeriodEnd),
			row.UsageM3, total, paid, row.Currency, row.Status,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, n)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	if parsed, err := time.Parse(timeLayout, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", key)
	}
	return parsed, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
