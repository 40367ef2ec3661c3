package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"waterbill/internal/audit"
	billing "waterbill/internal/billing/domain"
	billmemory "waterbill/internal/billing/infrastructure/memory"
	"waterbill/internal/payments/application"
	"waterbill/internal/payments/infrastructure/memory"
)

func newTestHandler(t *testing.T) (*Handler, *audit.MemoryLogger) {
	t.Helper()
	bills := billmemory.NewBillRepository()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, bills.Create(context.Background(), &billing.Bill{
		CustomerID: 3, BillDate: start.AddDate(0, 1, 0), DueDate: start.AddDate(0, 1, 14),
		PeriodStart: start, PeriodEnd: start.AddDate(0, 1, 0),
		TotalAmount: decimal.RequireFromString("51"), PaidAmount: decimal.Zero,
		Currency: "USD", Status: billing.StatusPending,
	}))
	svc, err := application.NewPaymentService(memory.NewPaymentRepository(bills), nil, nil)
	require.NoError(t, err)
	logger := &audit.MemoryLogger{}
	h, err := NewHandler(svc, logger, nil)
	require.NoError(t, err)
	return h, logger
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestRecordPayment(t *testing.T) {
	h, logger := newTestHandler(t)

	resp := serve(h, http.MethodPost, "/api/v1/payments", `{"bill_id":1,"payment_method":"mobile_money","amount":"51.00","payment_date":"2026-04-03T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), `"status":"paid"`)
	require.Len(t, logger.Entries(), 1)

	require.Equal(t, http.StatusConflict, serve(h, http.MethodPost, "/api/v1/payments", `{"bill_id":1,"payment_method":"cash","amount":"1"}`).Code)
	require.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/api/v1/payments", `{"bill_id":2,"payment_method":"cash","amount":"1"}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/api/v1/payments", `{"bill_id":1,"payment_method":"cash","amount":"-1"}`).Code)

	resp = serve(h, http.MethodGet, "/api/v1/payments?customer_id=3", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"payment_method":"mobile_money"`)

	resp = serve(h, http.MethodGet, "/api/v1/payments/recent?limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"amount":"51"`)

	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/v1/payments", "").Code)
}

func TestPaymentMethods(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := serve(h, http.MethodGet, "/api/v1/payment-methods", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "bank_transfer")
}
