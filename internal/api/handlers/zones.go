package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ZoneHandler struct {
	db        *gorm.DB
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewZoneHandler(db *gorm.DB, inv *inventory.Service, logger *slog.Logger) *ZoneHandler {
	return &ZoneHandler{db: db, inventory: inv, logger: logger}
}

// ZoneRequest creates or edits a zone. OrganizationID is read only for
// global admins; Status only on update.
type ZoneRequest struct {
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name"`
	Status         string `json:"status,omitempty"`
}

func (r ZoneRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 2, 120) {
		errors.Add("name", "Name must be 2 to 120 characters")
	}
	if r.OrganizationID != "" && !validation.IsValidUUID(r.OrganizationID) {
		errors.Add("organization_id", "Invalid organization ID format")
	}
	if r.Status != "" && !models.Status(r.Status).Valid() {
		errors.Add("status", "Status must be ACTIVE or INACTIVE")
	}
	return errors
}

type ZoneResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

func zoneToResponse(z *models.Zone) ZoneResponse {
	return ZoneResponse{
		ID:             z.ID.String(),
		OrganizationID: z.OrganizationID.String(),
		Name:           z.Name,
		Status:         string(z.Status),
		CreatedAt:      z.CreatedAt.Format(time.RFC3339),
	}
}

var zoneSorts = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// List handles GET /api/v1/zones
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := access.FromContext(r.Context())
	p := dto.ParseListParams(r)

	query := scope.Filter(h.db.WithContext(r.Context()).Model(&models.Zone{}), "organization_id")
	if orgID := parseOptionalID(r.URL.Query().Get("organization_id")); orgID != uuid.Nil {
		query = query.Where("organization_id = ?", orgID)
	}
	query = statusFilter(query, p, "status")
	query = search(query, p.Query, "name")

	var zones []models.Zone
	total, err := paginate(query, p, p.OrderBy(zoneSorts, "name"), &zones)
	if err != nil {
		h.logger.Error("listing zones", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list zones")
		return
	}

	response := make([]ZoneResponse, len(zones))
	for i := range zones {
		response[i] = zoneToResponse(&zones[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// Get handles GET /api/v1/zones/{id}
func (h *ZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	zone, err := h.inventory.GetZone(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Zone")
		return
	}
	writeJSON(w, http.StatusOK, zoneToResponse(zone))
}

// Create handles POST /api/v1/zones
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	zone, err := h.inventory.CreateZone(r.Context(), access.FromContext(r.Context()), inventory.ZoneInput{
		OrganizationID: parseOptionalID(req.OrganizationID),
		Name:           req.Name,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Zone")
		return
	}
	writeJSON(w, http.StatusCreated, zoneToResponse(zone))
}

// Update handles PUT /api/v1/zones/{id}
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ZoneRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	zone, err := h.inventory.UpdateZone(r.Context(), access.FromContext(r.Context()), id, inventory.ZoneInput{
		Name:   req.Name,
		Status: models.Status(req.Status),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Zone")
		return
	}
	writeJSON(w, http.StatusOK, zoneToResponse(zone))
}

// Delete handles DELETE /api/v1/zones/{id}. Zones that still hold active
// devices are kept and the response says so.
func (h *ZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.inventory.DeactivateZone(r.Context(), access.FromContext(r.Context()), id)
	writeDeactivated(w, h.logger, err, "Zone")
}
