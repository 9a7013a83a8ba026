package collector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/people-counter/report"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, _ := newTestStore(t)
	return NewServer(store).Router(), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestServerBuses(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/buses", NewBus{ID: "BUS-001", BusNumber: "101", Route: "Downtown"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Bus
	decode(t, rec, &created)
	assert.Equal(t, DefaultCapacity, created.Capacity)

	rec = doJSON(t, router, http.MethodPost, "/api/buses", NewBus{ID: "BUS-001", BusNumber: "101", Route: "Downtown"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/buses", map[string]interface{}{"id": "BUS-002"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/buses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var buses []Bus
	decode(t, rec, &buses)
	assert.Len(t, buses, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/buses/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &buses)
	assert.Len(t, buses, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/buses/BUS-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bus Bus
	decode(t, rec, &bus)
	assert.Equal(t, "101", bus.BusNumber)

	rec = doJSON(t, router, http.MethodGet, "/api/buses/BUS-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerPassengerData(t *testing.T) {
	router, store := newTestRouter(t)
	seedBus(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/passenger-data", report.Update{BusID: "BUS-001", CurrentPassengers: 38, PassengersIn: 40, PassengersOut: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool `json:"success"`
		Bus     Bus  `json:"bus"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(38), resp.Bus.CurrentPassengers)
	assert.Equal(t, StatusNearCapacity, resp.Bus.Status)

	rec = doJSON(t, router, http.MethodPost, "/api/passenger-data", report.Update{BusID: "BUS-404"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/passenger-data", map[string]interface{}{"currentPassengers": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/passenger-data", map[string]interface{}{"busId": "BUS-001", "passengersIn": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/passenger-data/bus/BUS-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data []PassengerData
	decode(t, rec, &data)
	require.Len(t, data, 1)
	assert.Equal(t, int64(40), data[0].PassengersIn)

	rec = doJSON(t, router, http.MethodGet, "/api/passenger-data/recent?hours=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)
	assert.Len(t, data, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/passenger-data/recent?hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerAlerts(t *testing.T) {
	router, store := newTestRouter(t)
	seedBus(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/passenger-data", report.Update{BusID: "BUS-001", CurrentPassengers: 44})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/alerts/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []Alert
	decode(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)

	rec = doJSON(t, router, http.MethodPatch, "/api/alerts/"+alerts[0].ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/alerts/unread", nil)
	decode(t, rec, &alerts)
	assert.Empty(t, alerts)

	rec = doJSON(t, router, http.MethodGet, "/api/alerts", nil)
	decode(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].IsRead)

	rec = doJSON(t, router, http.MethodPatch, "/api/alerts/missing/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerActivityAndStats(t *testing.T) {
	router, store := newTestRouter(t)
	seedBus(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/passenger-data", report.Update{BusID: "BUS-001", CurrentPassengers: 20})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/activity?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activity []Activity
	decode(t, rec, &activity)
	require.Len(t, activity, 1)
	assert.Equal(t, "Passenger count updated: 20/40", activity[0].Description)

	rec = doJSON(t, router, http.MethodGet, "/api/activity/bus/BUS-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &activity)
	assert.Len(t, activity, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/activity/bus/BUS-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats DashboardStats
	decode(t, rec, &stats)
	assert.Equal(t, DashboardStats{TotalPassengers: 20, ActiveBuses: 1, ActiveBusesRunning: 1, AverageOccupancy: 50}, stats)
}
