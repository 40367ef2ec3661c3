package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waterbill/internal/audit"
	masterdata "waterbill/internal/masterdata/domain"
	mdmemory "waterbill/internal/masterdata/infrastructure/memory"
	"waterbill/internal/metering/application"
	"waterbill/internal/metering/infrastructure/memory"
)

func newTestService(t *testing.T) (*application.ReadingService, *memory.ReadingRepository, *masterdata.Meter) {
	t.Helper()
	store := mdmemory.NewStore()
	customer := &masterdata.Customer{Name: "Ada", Email: "ada@example.com", AccountType: "residential", AccountStatus: masterdata.StatusActive, BillingCycle: masterdata.CycleMonthly}
	meter := &masterdata.Meter{MeterNumber: "WM-1"}
	require.NoError(t, store.Create(context.Background(), customer, meter))
	repo := memory.NewReadingRepository()
	svc, err := application.NewReadingService(repo, store.Meters(), nil)
	require.NoError(t, err)
	return svc, repo, meter
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestRecordAndListReadings(t *testing.T) {
	svc, _, meter := newTestService(t)
	logger := &audit.MemoryLogger{}
	h, err := NewHandler(svc, logger, nil)
	require.NoError(t, err)

	resp := serve(h, http.MethodPost, "/api/v1/readings", `{"meter_number":"WM-1","reading_date":"2026-03-04T00:00:00Z","water_usage":7.25}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Len(t, logger.Entries(), 1)

	resp = serve(h, http.MethodPost, "/api/v1/readings", `{"meter_id":`+strconv.FormatInt(meter.ID, 10)+`,"reading_date":"2026-03-05T00:00:00Z","water_usage":-1}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	resp = serve(h, http.MethodPost, "/api/v1/readings", `{"meter_number":"nope","reading_date":"2026-03-05T00:00:00Z","water_usage":1}`)
	require.Equal(t, http.StatusNotFound, resp.Code)

	path := "/api/v1/readings?meter_id=" + strconv.FormatInt(meter.ID, 10) + "&from=2026-03-01&to=2026-04-01"
	resp = serve(h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"water_usage":7.25`)

	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/v1/readings", "").Code)
	badFrom := "/api/v1/readings?meter_id=" + strconv.FormatInt(meter.ID, 10) + "&from=garbage&to=2026-04-01"
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, badFrom, "").Code)
}

func TestIngest(t *testing.T) {
	svc, repo, _ := newTestService(t)
	h, err := NewIngestHandler(svc, nil)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	body := `{"meter_number":"WM-1","points":[{"ts":` + strconv.FormatInt(ts.UnixMilli(), 10) + `,"usage":1.5},{"ts":` + strconv.FormatInt(ts.Unix()+3600, 10) + `,"usage":2}]}`
	resp := serve(h, http.MethodPost, IngestPath, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t, `{"inserted":2}`, resp.Body.String())

	stored := repo.All()
	require.Len(t, stored, 2)
	require.True(t, stored[0].ReadingDate.Equal(ts))
	require.True(t, stored[1].ReadingDate.Equal(ts.Add(time.Hour)))

	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, IngestPath, `{"meter_number":"WM-1"}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, IngestPath, `{"meter_number":"WM-1","ts":1700000000}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, IngestPath, `{"meter_number":"WM-1","ts":1700000000,"usage":-3}`).Code)
	require.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, IngestPath, "").Code)
	require.Len(t, repo.All(), 2)
}
