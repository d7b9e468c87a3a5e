package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeasurementHandler struct {
	db        *gorm.DB
	inventory *inventory.Service
	alerts    *alerts.Service
	logger    *slog.Logger
}

func NewMeasurementHandler(db *gorm.DB, inv *inventory.Service, alertService *alerts.Service, logger *slog.Logger) *MeasurementHandler {
	return &MeasurementHandler{db: db, inventory: inv, alerts: alertService, logger: logger}
}

type MeasurementRequest struct {
	EnergyKWh  *float64   `json:"energy_kwh"`
	MeasuredAt *time.Time `json:"measured_at,omitempty"`
}

func (r MeasurementRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if r.EnergyKWh == nil {
		errors.Add("energy_kwh", "Energy is required")
	} else if !validation.InRange(r.EnergyKWh, models.MinEnergyKWh, models.MaxEnergyKWh) {
		errors.Add("energy_kwh", "Energy must be between 0 and 10000 kWh")
	}
	return errors
}

type MeasurementResponse struct {
	ID               string  `json:"id"`
	OrganizationID   string  `json:"organization_id"`
	DeviceID         string  `json:"device_id"`
	DeviceName       string  `json:"device_name,omitempty"`
	EnergyKWh        float64 `json:"energy_kwh"`
	MeasuredAt       string  `json:"measured_at"`
	TriggeredAlertID *string `json:"triggered_alert_id,omitempty"`
	AlertName        string  `json:"alert_name,omitempty"`
	AlertSeverity    string  `json:"alert_severity,omitempty"`
	Status           string  `json:"status"`
}

func measurementToResponse(m *models.Measurement) MeasurementResponse {
	resp := MeasurementResponse{
		ID:             m.ID.String(),
		OrganizationID: m.OrganizationID.String(),
		DeviceID:       m.DeviceID.String(),
		EnergyKWh:      m.EnergyKWh,
		MeasuredAt:     m.MeasuredAt.UTC().Format(time.RFC3339),
		Status:         string(m.Status),
	}
	if m.Device != nil {
		resp.DeviceName = m.Device.Name
	}
	if m.TriggeredAlertID != nil {
		s := m.TriggeredAlertID.String()
		resp.TriggeredAlertID = &s
	}
	if m.TriggeredAlert != nil {
		resp.AlertName = m.TriggeredAlert.Name
		resp.AlertSeverity = string(m.TriggeredAlert.Severity)
	}
	return resp
}

var measurementSorts = map[string]string{
	"measured_at": "measured_at",
	"energy":      "energy_kwh",
	"created_at":  "created_at",
}

// List handles GET /api/v1/measurements. Newest readings come first unless
// the caller picks an order.
func (h *MeasurementHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := access.FromContext(r.Context())
	p := dto.ParseListParams(r)
	q := r.URL.Query()
	if p.Sort == "" && q.Get("direction") == "" {
		p.Direction = "desc"
	}

	query := scope.Filter(h.db.WithContext(r.Context()).Model(&models.Measurement{}), "organization_id")
	query = statusFilter(query, p, "status")
	if id := parseOptionalID(q.Get("device_id")); id != uuid.Nil {
		query = query.Where("device_id = ?", id)
	}
	if alertsOnly, _ := strconv.ParseBool(q.Get("alerts_only")); alertsOnly {
		query = query.Where("triggered_alert_id IS NOT NULL")
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		query = query.Where("measured_at >= ?", from.UTC())
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		query = query.Where("measured_at <= ?", to.UTC())
	}

	var measurements []models.Measurement
	total, err := paginate(query, p, p.OrderBy(measurementSorts, "measured_at"), &measurements,
		"Device", "TriggeredAlert")
	if err != nil {
		h.logger.Error("listing measurements", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list measurements")
		return
	}

	response := make([]MeasurementResponse, len(measurements))
	for i := range measurements {
		response[i] = measurementToResponse(&measurements[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// Get handles GET /api/v1/measurements/{id}
func (h *MeasurementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	scope := access.FromContext(r.Context())

	var m models.Measurement
	if err := scope.Filter(h.db.WithContext(r.Context()), "organization_id").
		Preload("Device").
		Preload("TriggeredAlert").
		First(&m, "id = ?", id).Error; err != nil {
		writeError(w, http.StatusNotFound, "Measurement not found")
		return
	}
	writeJSON(w, http.StatusOK, measurementToResponse(&m))
}

// Create handles POST /api/v1/devices/{id}/measurements
func (h *MeasurementHandler) Create(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req MeasurementRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	scope := access.FromContext(r.Context())
	device, err := h.inventory.GetDevice(r.Context(), scope, deviceID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Device")
		return
	}
	if !scope.CanManage(device.OrganizationID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var measuredAt time.Time
	if req.MeasuredAt != nil {
		measuredAt = *req.MeasuredAt
	}
	m, err := h.alerts.RecordMeasurement(r.Context(), device, *req.EnergyKWh, measuredAt)
	if err != nil {
		writeServiceError(w, h.logger, err, "Measurement")
		return
	}
	m.Device = device
	writeJSON(w, http.StatusCreated, measurementToResponse(m))
}
