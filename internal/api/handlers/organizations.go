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
	"gorm.io/gorm"
)

type OrganizationHandler struct {
	db        *gorm.DB
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewOrganizationHandler(db *gorm.DB, inv *inventory.Service, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{db: db, inventory: inv, logger: logger}
}

type OrganizationRequest struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (r OrganizationRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 2, 100) {
		errors.Add("name", "Name must be 2 to 100 characters")
	}
	return errors
}

type OrganizationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func organizationToResponse(org *models.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		IsActive:  org.IsActive,
		CreatedAt: org.CreatedAt.Format(time.RFC3339),
	}
}

var organizationSorts = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := access.FromContext(r.Context())
	p := dto.ParseListParams(r)

	query := scope.Filter(h.db.WithContext(r.Context()).Model(&models.Organization{}), "id")
	query = activeFilter(query, p, "is_active")
	query = search(query, p.Query, "name")

	var orgs []models.Organization
	total, err := paginate(query, p, p.OrderBy(organizationSorts, "name"), &orgs)
	if err != nil {
		h.logger.Error("listing organizations", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list organizations")
		return
	}

	response := make([]OrganizationResponse, len(orgs))
	for i := range orgs {
		response[i] = organizationToResponse(&orgs[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	scope := access.FromContext(r.Context())

	var org models.Organization
	if err := scope.Filter(h.db.WithContext(r.Context()), "id").First(&org, "id = ?", id).Error; err != nil {
		writeError(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeJSON(w, http.StatusOK, organizationToResponse(&org))
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req OrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	org, err := h.inventory.CreateOrganization(r.Context(), access.FromContext(r.Context()), inventory.OrganizationInput{Name: req.Name})
	if err != nil {
		writeServiceError(w, h.logger, err, "Organization")
		return
	}
	writeJSON(w, http.StatusCreated, organizationToResponse(org))
}

// Update handles PUT /api/v1/organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	org, err := h.inventory.UpdateOrganization(r.Context(), access.FromContext(r.Context()), id, inventory.OrganizationInput{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Organization")
		return
	}
	writeJSON(w, http.StatusOK, organizationToResponse(org))
}

// Delete handles DELETE /api/v1/organizations/{id}
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.inventory.DeactivateOrganization(r.Context(), access.FromContext(r.Context()), id)
	writeDeactivated(w, h.logger, err, "Organization")
}
