package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"gorm.io/gorm"
)

const recentMeasurementsLimit = 5

type DashboardHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDashboardHandler(db *gorm.DB, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{db: db, logger: logger}
}

// DashboardResponse carries only the figures relevant to the caller's role.
type DashboardResponse struct {
	Role               string                `json:"role"`
	OrganizationID     string                `json:"organization_id,omitempty"`
	TotalOrganizations *int64                `json:"total_organizations,omitempty"`
	TotalUsers         *int64                `json:"total_users,omitempty"`
	TotalZones         *int64                `json:"total_zones,omitempty"`
	TotalDevices       *int64                `json:"total_devices,omitempty"`
	TotalProducts      *int64                `json:"total_products,omitempty"`
	ActiveDevices      *int64                `json:"active_devices,omitempty"`
	ActiveAlerts       *int64                `json:"active_alerts,omitempty"`
	RecentMeasurements []MeasurementResponse `json:"recent_measurements,omitempty"`
}

// Index handles GET /api/v1/dashboard
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	scope := access.FromContext(r.Context())
	db := h.db.WithContext(r.Context())

	resp := DashboardResponse{Role: scope.Role}
	if !scope.IsGlobal() && !scope.IsEmpty() {
		resp.OrganizationID = scope.OrganizationID.String()
	}

	var err error
	count := func(q *gorm.DB, where ...interface{}) *int64 {
		var n int64
		if len(where) > 0 {
			q = q.Where(where[0], where[1:]...)
		}
		if err == nil {
			err = q.Count(&n).Error
		}
		return &n
	}
	scoped := func(model interface{}) *gorm.DB {
		return scope.Filter(db.Model(model), "organization_id")
	}
	alerting := "triggered_alert_id IS NOT NULL AND status = ?"

	switch {
	case scope.IsGlobal():
		resp.TotalOrganizations = count(db.Model(&models.Organization{}))
		resp.TotalUsers = count(db.Model(&models.User{}))
		resp.TotalZones = count(db.Model(&models.Zone{}))
		resp.TotalDevices = count(db.Model(&models.Device{}))
		resp.TotalProducts = count(db.Model(&models.Product{}))
		resp.ActiveAlerts = count(db.Model(&models.Measurement{}), alerting, models.StatusActive)
	case scope.Role == models.RoleOrgAdmin:
		resp.TotalZones = count(scoped(&models.Zone{}))
		resp.TotalDevices = count(scoped(&models.Device{}))
		resp.ActiveDevices = count(scoped(&models.Device{}), "status = ?", models.StatusActive)
		resp.ActiveAlerts = count(scoped(&models.Measurement{}), alerting, models.StatusActive)
	default:
		resp.ActiveDevices = count(scoped(&models.Device{}), "status = ?", models.StatusActive)
		var recent []models.Measurement
		if err == nil {
			err = scoped(&models.Measurement{}).
				Preload("Device").
				Preload("TriggeredAlert").
				Order("measured_at DESC").
				Limit(recentMeasurementsLimit).
				Find(&recent).Error
		}
		resp.RecentMeasurements = make([]MeasurementResponse, len(recent))
		for i := range recent {
			resp.RecentMeasurements[i] = measurementToResponse(&recent[i])
		}
	}

	if err != nil {
		h.logger.Error("loading dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
