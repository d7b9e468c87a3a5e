package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/export"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxExportRows = 10000

type DeviceHandler struct {
	db        *gorm.DB
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewDeviceHandler(db *gorm.DB, inv *inventory.Service, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{db: db, inventory: inv, logger: logger}
}

// DeviceRequest creates or edits a device. OrganizationID is read only for
// global admins; everyone else writes into their own organization.
type DeviceRequest struct {
	OrganizationID string `json:"organization_id,omitempty"`
	ZoneID         string `json:"zone_id"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	SerialNumber   string `json:"serial_number,omitempty"`
	MaxPowerW      int    `json:"max_power_w"`
	Status         string `json:"status,omitempty"`
}

func (r DeviceRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if r.OrganizationID != "" && !validation.IsValidUUID(r.OrganizationID) {
		errors.Add("organization_id", "Invalid organization ID format")
	}
	if !validation.IsValidUUID(r.ZoneID) {
		errors.Add("zone_id", "Zone is required")
	}
	if !validation.IsValidUUID(r.ProductID) {
		errors.Add("product_id", "Product is required")
	}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 3, 160) {
		errors.Add("name", "Name must be 3 to 160 characters")
	}
	if !validation.LengthBetween(strings.TrimSpace(r.SerialNumber), 0, 120) {
		errors.Add("serial_number", "Serial number must be at most 120 characters")
	}
	if r.MaxPowerW < 1 || r.MaxPowerW > 50000 {
		errors.Add("max_power_w", "Max power must be between 1 and 50000 W")
	}
	if r.Status != "" && !models.Status(r.Status).Valid() {
		errors.Add("status", "Status must be ACTIVE or INACTIVE")
	}
	return errors
}

func (r DeviceRequest) input() inventory.DeviceInput {
	return inventory.DeviceInput{
		OrganizationID: parseOptionalID(r.OrganizationID),
		ZoneID:         parseOptionalID(r.ZoneID),
		ProductID:      parseOptionalID(r.ProductID),
		Name:           r.Name,
		SerialNumber:   r.SerialNumber,
		MaxPowerW:      r.MaxPowerW,
		Status:         models.Status(r.Status),
	}
}

type DeviceResponse struct {
	ID               string `json:"id"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name,omitempty"`
	ZoneID           string `json:"zone_id"`
	ZoneName         string `json:"zone_name,omitempty"`
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name,omitempty"`
	Name             string `json:"name"`
	SerialNumber     string `json:"serial_number,omitempty"`
	MaxPowerW        int    `json:"max_power_w"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

func deviceToResponse(d *models.Device) DeviceResponse {
	resp := DeviceResponse{
		ID:             d.ID.String(),
		OrganizationID: d.OrganizationID.String(),
		ZoneID:         d.ZoneID.String(),
		ProductID:      d.ProductID.String(),
		Name:           d.Name,
		SerialNumber:   d.SerialNumber,
		MaxPowerW:      d.MaxPowerW,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
	if d.Organization != nil {
		resp.OrganizationName = d.Organization.Name
	}
	if d.Zone != nil {
		resp.ZoneName = d.Zone.Name
	}
	if d.Product != nil {
		resp.ProductName = d.Product.Name
	}
	return resp
}

var deviceSorts = map[string]string{
	"name":          "devices.name",
	"serial_number": "devices.serial_number",
	"product":       "products.name",
	"zone":          "zones.name",
	"max_power":     "devices.max_power_w",
	"created_at":    "devices.created_at",
}

// listQuery applies scope, filters and search shared by List and Export.
func (h *DeviceHandler) listQuery(r *http.Request, p dto.ListParams) *gorm.DB {
	scope := access.FromContext(r.Context())
	q := r.URL.Query()

	query := h.db.WithContext(r.Context()).Model(&models.Device{}).
		Joins("LEFT JOIN zones ON zones.id = devices.zone_id").
		Joins("LEFT JOIN products ON products.id = devices.product_id")
	query = scope.Filter(query, "devices.organization_id")
	query = statusFilter(query, p, "devices.status")

	if id := parseOptionalID(q.Get("organization_id")); id != uuid.Nil {
		query = query.Where("devices.organization_id = ?", id)
	}
	if id := parseOptionalID(q.Get("zone_id")); id != uuid.Nil {
		query = query.Where("devices.zone_id = ?", id)
	}
	if id := parseOptionalID(q.Get("product_id")); id != uuid.Nil {
		query = query.Where("devices.product_id = ?", id)
	}

	return search(query, p.Query, "devices.name", "devices.serial_number", "products.name", "zones.name")
}

// List handles GET /api/v1/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	p := dto.ParseListParams(r)

	var devices []models.Device
	total, err := paginate(h.listQuery(r, p), p, p.OrderBy(deviceSorts, "devices.name"), &devices,
		"Zone", "Product", "Organization")
	if err != nil {
		h.logger.Error("listing devices", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list devices")
		return
	}

	response := make([]DeviceResponse, len(devices))
	for i := range devices {
		response[i] = deviceToResponse(&devices[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// Export handles GET /api/v1/devices/export. It takes the same filters as
// List and returns every matching row as an xlsx workbook.
func (h *DeviceHandler) Export(w http.ResponseWriter, r *http.Request) {
	p := dto.ParseListParams(r)

	var devices []models.Device
	err := h.listQuery(r, p).
		Preload("Zone").
		Preload("Product").
		Preload("Organization").
		Order(p.OrderBy(deviceSorts, "devices.name")).
		Limit(maxExportRows).
		Find(&devices).Error
	if err != nil {
		h.logger.Error("exporting devices", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to export devices")
		return
	}

	data, err := export.Devices(devices)
	if err != nil {
		h.logger.Error("rendering device workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to export devices")
		return
	}

	filename := fmt.Sprintf("devices-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Get handles GET /api/v1/devices/{id}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	device, err := h.inventory.GetDevice(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Device")
		return
	}
	writeJSON(w, http.StatusOK, deviceToResponse(device))
}

// Create handles POST /api/v1/devices
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	device, err := h.inventory.CreateDevice(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Device")
		return
	}
	writeJSON(w, http.StatusCreated, deviceToResponse(device))
}

// Update handles PUT /api/v1/devices/{id}
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req DeviceRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	device, err := h.inventory.UpdateDevice(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Device")
		return
	}
	writeJSON(w, http.StatusOK, deviceToResponse(device))
}

// Delete handles DELETE /api/v1/devices/{id}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.inventory.DeactivateDevice(r.Context(), access.FromContext(r.Context()), id)
	writeDeactivated(w, h.logger, err, "Device")
}
