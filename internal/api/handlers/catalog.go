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

// CatalogHandler serves categories and products. Everyone may read the
// catalog; only global admins change it.
type CatalogHandler struct {
	db        *gorm.DB
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewCatalogHandler(db *gorm.DB, inv *inventory.Service, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{db: db, inventory: inv, logger: logger}
}

type CategoryRequest struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

func (r CategoryRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 2, 100) {
		errors.Add("name", "Name must be 2 to 100 characters")
	}
	if r.Status != "" && !models.Status(r.Status).Valid() {
		errors.Add("status", "Status must be ACTIVE or INACTIVE")
	}
	return errors
}

type CategoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func categoryToResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

type ProductRequest struct {
	CategoryID      string   `json:"category_id"`
	Name            string   `json:"name"`
	SKU             string   `json:"sku"`
	Manufacturer    string   `json:"manufacturer"`
	ModelName       string   `json:"model_name"`
	Description     string   `json:"description,omitempty"`
	NominalVoltageV *float64 `json:"nominal_voltage_v,omitempty"`
	MaxCurrentA     *float64 `json:"max_current_a,omitempty"`
	StandbyPowerW   *float64 `json:"standby_power_w,omitempty"`
	Status          string   `json:"status,omitempty"`
}

func (r ProductRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.IsValidUUID(r.CategoryID) {
		errors.Add("category_id", "Category is required")
	}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 3, 160) {
		errors.Add("name", "Name must be 3 to 160 characters")
	}
	if !validation.IsValidSKU(strings.TrimSpace(r.SKU)) {
		errors.Add("sku", "SKU may only contain upper-case letters, digits and dashes")
	}
	if !validation.LengthBetween(strings.TrimSpace(r.Manufacturer), 0, 120) {
		errors.Add("manufacturer", "Manufacturer must be at most 120 characters")
	}
	if !validation.LengthBetween(strings.TrimSpace(r.ModelName), 0, 120) {
		errors.Add("model_name", "Model name must be at most 120 characters")
	}
	if !validation.InRange(r.NominalVoltageV, 0, 1000) {
		errors.Add("nominal_voltage_v", "Voltage must be between 0 and 1000 V")
	}
	if !validation.InRange(r.MaxCurrentA, 0, 100) {
		errors.Add("max_current_a", "Current must be between 0 and 100 A")
	}
	if !validation.InRange(r.StandbyPowerW, 0, 1000) {
		errors.Add("standby_power_w", "Standby power must be between 0 and 1000 W")
	}
	if r.Status != "" && !models.Status(r.Status).Valid() {
		errors.Add("status", "Status must be ACTIVE or INACTIVE")
	}
	return errors
}

func (r ProductRequest) input() inventory.ProductInput {
	return inventory.ProductInput{
		CategoryID:      parseOptionalID(r.CategoryID),
		Name:            r.Name,
		SKU:             r.SKU,
		Manufacturer:    r.Manufacturer,
		ModelName:       r.ModelName,
		Description:     validation.SanitizeString(r.Description),
		NominalVoltageV: r.NominalVoltageV,
		MaxCurrentA:     r.MaxCurrentA,
		StandbyPowerW:   r.StandbyPowerW,
		Status:          models.Status(r.Status),
	}
}

type ProductResponse struct {
	ID              string   `json:"id"`
	CategoryID      string   `json:"category_id"`
	CategoryName    string   `json:"category_name,omitempty"`
	Name            string   `json:"name"`
	SKU             string   `json:"sku"`
	Manufacturer    string   `json:"manufacturer,omitempty"`
	ModelName       string   `json:"model_name,omitempty"`
	Description     string   `json:"description,omitempty"`
	NominalVoltageV *float64 `json:"nominal_voltage_v,omitempty"`
	MaxCurrentA     *float64 `json:"max_current_a,omitempty"`
	StandbyPowerW   *float64 `json:"standby_power_w,omitempty"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
}

func productToResponse(p *models.Product) ProductResponse {
	resp := ProductResponse{
		ID:              p.ID.String(),
		CategoryID:      p.CategoryID.String(),
		Name:            p.Name,
		SKU:             p.SKU,
		Manufacturer:    p.Manufacturer,
		ModelName:       p.ModelName,
		Description:     p.Description,
		NominalVoltageV: p.NominalVoltageV,
		MaxCurrentA:     p.MaxCurrentA,
		StandbyPowerW:   p.StandbyPowerW,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if p.Category != nil {
		resp.CategoryName = p.Category.Name
	}
	return resp
}

var categorySorts = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

var productSorts = map[string]string{
	"name":         "products.name",
	"sku":          "products.sku",
	"manufacturer": "products.manufacturer",
	"category":     "categories.name",
	"created_at":   "products.created_at",
}

// ListCategories handles GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	p := dto.ParseListParams(r)

	query := h.db.WithContext(r.Context()).Model(&models.Category{})
	query = statusFilter(query, p, "status")
	query = search(query, p.Query, "name")

	var categories []models.Category
	total, err := paginate(query, p, p.OrderBy(categorySorts, "name"), &categories)
	if err != nil {
		h.logger.Error("listing categories", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i := range categories {
		response[i] = categoryToResponse(&categories[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// CreateCategory handles POST /api/v1/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	category, err := h.inventory.CreateCategory(r.Context(), access.FromContext(r.Context()), inventory.CategoryInput{Name: req.Name})
	if err != nil {
		writeServiceError(w, h.logger, err, "Category")
		return
	}
	writeJSON(w, http.StatusCreated, categoryToResponse(category))
}

// UpdateCategory handles PUT /api/v1/categories/{id}
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	category, err := h.inventory.UpdateCategory(r.Context(), access.FromContext(r.Context()), id, inventory.CategoryInput{
		Name:   req.Name,
		Status: models.Status(req.Status),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Category")
		return
	}
	writeJSON(w, http.StatusOK, categoryToResponse(category))
}

// DeleteCategory handles DELETE /api/v1/categories/{id}
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.inventory.DeactivateCategory(r.Context(), access.FromContext(r.Context()), id)
	writeDeactivated(w, h.logger, err, "Category")
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := dto.ParseListParams(r)

	query := h.db.WithContext(r.Context()).Model(&models.Product{}).
		Joins("LEFT JOIN categories ON categories.id = products.category_id")
	query = statusFilter(query, p, "products.status")
	if categoryID := parseOptionalID(r.URL.Query().Get("category_id")); categoryID != uuid.Nil {
		query = query.Where("products.category_id = ?", categoryID)
	}
	query = search(query, p.Query,
		"products.name", "products.sku", "products.manufacturer", "products.model_name", "categories.name")

	var products []models.Product
	total, err := paginate(query, p, p.OrderBy(productSorts, "products.name"), &products, "Category")
	if err != nil {
		h.logger.Error("listing products", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	response := make([]ProductResponse, len(products))
	for i := range products {
		response[i] = productToResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := h.db.WithContext(r.Context()).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(&product))
}

// CreateProduct handles POST /api/v1/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	product, err := h.inventory.CreateProduct(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Product")
		return
	}
	writeJSON(w, http.StatusCreated, productToResponse(product))
}

// UpdateProduct handles PUT /api/v1/products/{id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	product, err := h.inventory.UpdateProduct(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Product")
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(product))
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.inventory.DeactivateProduct(r.Context(), access.FromContext(r.Context()), id)
	writeDeactivated(w, h.logger, err, "Product")
}
