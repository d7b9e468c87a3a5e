package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/handlers"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMeasurementTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewMeasurementHandler(tc.DB,
		inventory.NewService(tc.DB, testLogger()),
		alerts.NewService(tc.DB, testLogger(), nil),
		testLogger())

	r := protectedRouter(tc)
	r.Get("/api/v1/measurements", handler.List)
	r.Get("/api/v1/measurements/{id}", handler.Get)
	r.With(middleware.RequireRole(models.RoleGlobalAdmin, models.RoleOrgAdmin)).
		Post("/api/v1/devices/{id}/measurements", handler.Create)

	return r, tc
}

func TestMeasurementHandler_Create(t *testing.T) {
	router, tc := setupMeasurementTestRouter(t)
	defer tc.Cleanup()

	rule := testutil.CreateTestAlertRule(t, tc.DB, "High usage", models.SeverityHigh, nil, testutil.Float(50))
	device := testutil.CreateTestDevice(t, tc.DB, testutil.CreateTestZone(t, tc.DB, tc.Org.ID, ""), testutil.CreateTestProduct(t, tc.DB), "")
	path := "/api/v1/devices/" + device.ID.String() + "/measurements"

	t.Run("within limits", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{"energy_kwh": 12.5}, tc.Token))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var resp handlers.MeasurementResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 12.5, resp.EnergyKWh)
		assert.Nil(t, resp.TriggeredAlertID)
		assert.Equal(t, device.Name, resp.DeviceName)
	})

	t.Run("breach raises the alert", func(t *testing.T) {
		measuredAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		body := map[string]interface{}{"energy_kwh": 75, "measured_at": measuredAt}
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, body, tc.Token))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var resp handlers.MeasurementResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.TriggeredAlertID)
		assert.Equal(t, rule.ID.String(), *resp.TriggeredAlertID)
		assert.Equal(t, "High usage", resp.AlertName)
		assert.Equal(t, string(models.SeverityHigh), resp.AlertSeverity)
		assert.Equal(t, "2026-03-01T08:00:00Z", resp.MeasuredAt)
	})

	t.Run("energy out of range", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{"energy_kwh": -1}, tc.Token))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "energy_kwh")
	})

	t.Run("energy required", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{}, tc.Token))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("member forbidden", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{"energy_kwh": 1}, tc.MemberToken))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("foreign device not found", func(t *testing.T) {
		_, token := tc.TokenFor(t, testutil.CreateTestOrg(t, tc.DB), models.RoleOrgAdmin)
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{"energy_kwh": 1}, token))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("inactive device rejected", func(t *testing.T) {
		require.NoError(t, tc.DB.Model(device).Update("status", models.StatusInactive).Error)

		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", path, map[string]interface{}{"energy_kwh": 1}, tc.Token))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestMeasurementHandler_List(t *testing.T) {
	router, tc := setupMeasurementTestRouter(t)
	defer tc.Cleanup()

	rule := testutil.CreateTestAlertRule(t, tc.DB, "Spike", models.SeverityCritical, nil, testutil.Float(100))
	product := testutil.CreateTestProduct(t, tc.DB)
	device := testutil.CreateTestDevice(t, tc.DB, testutil.CreateTestZone(t, tc.DB, tc.Org.ID, ""), product, "")

	older := testutil.CreateTestMeasurement(t, tc.DB, device, 10, nil)
	require.NoError(t, tc.DB.Model(older).Update("measured_at", time.Now().UTC().Add(-2*time.Hour)).Error)
	newest := testutil.CreateTestMeasurement(t, tc.DB, device, 150, &rule.ID)

	foreignDevice := testutil.CreateTestDevice(t, tc.DB, testutil.CreateTestZone(t, tc.DB, testutil.CreateTestOrg(t, tc.DB).ID, ""), product, "")
	foreign := testutil.CreateTestMeasurement(t, tc.DB, foreignDevice, 5, nil)

	t.Run("newest first and scoped", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/measurements", nil, tc.MemberToken))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data  []handlers.MeasurementResponse `json:"data"`
			Total int64                          `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Equal(t, int64(2), resp.Total)
		assert.Equal(t, newest.ID.String(), resp.Data[0].ID)
		assert.Equal(t, older.ID.String(), resp.Data[1].ID)
		assert.Equal(t, "Spike", resp.Data[0].AlertName)
	})

	t.Run("alerts only", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/measurements?alerts_only=true", nil, tc.AdminToken))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("device filter", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/measurements?device_id="+foreignDevice.ID.String(), nil, tc.AdminToken))

		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("foreign measurement not found", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/measurements/"+foreign.ID.String(), nil, tc.Token))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/measurements/"+foreign.ID.String(), nil, tc.AdminToken))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
