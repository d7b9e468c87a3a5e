package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// decode reads a JSON body into v and writes the 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} URL parameter and writes the 400 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(s string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// writeServiceError maps domain errors to HTTP responses. Anything unknown
// is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, what string) {
	switch {
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, alerts.ErrRuleNotFound),
		errors.Is(err, alerts.ErrOverrideNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, inventory.ErrForbidden), errors.Is(err, alerts.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, inventory.ErrNameTaken):
		writeJSON(w, http.StatusConflict, dto.FieldError("Name already in use", "name", "An active record with this name already exists"))
	case errors.Is(err, inventory.ErrSKUTaken):
		writeJSON(w, http.StatusConflict, dto.FieldError("SKU already in use", "sku", "A product with this SKU already exists"))
	case errors.Is(err, inventory.ErrZoneInUse):
		writeError(w, http.StatusConflict, "Zone has active devices")
	case errors.Is(err, inventory.ErrZoneMismatch):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "zone_id", "Zone does not belong to the organization"))
	case errors.Is(err, inventory.ErrZoneInactive):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "zone_id", "Zone is inactive"))
	case errors.Is(err, inventory.ErrProductInactive):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "product_id", "Product is inactive or unknown"))
	case errors.Is(err, inventory.ErrCategoryInactive):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "category_id", "Category is inactive or unknown"))
	case errors.Is(err, inventory.ErrOrganizationInactive),
		errors.Is(err, auth.ErrOrganizationNotFound):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "organization_id", "Organization is inactive or unknown"))
	case errors.Is(err, inventory.ErrOrganizationRequired):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "organization_id", "Organization is required"))
	case errors.Is(err, alerts.ErrProductNotFound):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "product_id", "Product not found"))
	case errors.Is(err, alerts.ErrInvalidThresholds):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "min_threshold", "Minimum must not exceed maximum"))
	case errors.Is(err, alerts.ErrEnergyOutOfRange):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "energy_kwh", "Energy must be between 0 and 10000 kWh"))
	case errors.Is(err, alerts.ErrDeviceInactive):
		writeError(w, http.StatusConflict, "Device is inactive")
	case errors.Is(err, auth.ErrUserExists):
		writeJSON(w, http.StatusConflict, dto.FieldError("User already exists", "username", "Username is taken"))
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, dto.FieldError("Email already registered", "email", "Email is already registered"))
	case errors.Is(err, auth.ErrPhoneTaken):
		writeJSON(w, http.StatusConflict, dto.FieldError("Phone already registered", "phone", "Phone is already registered"))
	case errors.Is(err, auth.ErrWrongPassword):
		writeJSON(w, http.StatusBadRequest, dto.FieldError("Validation failed", "current_password", "Current password is incorrect"))
	default:
		logger.Error("request failed", "resource", what, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process "+strings.ToLower(what))
	}
}

// writeDeactivated reports a soft delete. Failures are logged and answered
// with a generic message.
func writeDeactivated(w http.ResponseWriter, logger *slog.Logger, err error, what string) {
	if err == nil {
		writeJSON(w, http.StatusOK, dto.ActionResponse{Success: true, Message: what + " deactivated"})
		return
	}

	status := http.StatusInternalServerError
	msg := "Could not deactivate " + strings.ToLower(what)
	switch {
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, alerts.ErrRuleNotFound),
		errors.Is(err, alerts.ErrOverrideNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusNotFound
		msg = what + " not found"
	case errors.Is(err, inventory.ErrForbidden), errors.Is(err, alerts.ErrForbidden):
		status = http.StatusForbidden
		msg = "Forbidden"
	case errors.Is(err, inventory.ErrZoneInUse):
		status = http.StatusConflict
		msg = "Zone still has active devices"
	default:
		logger.Error("deactivation failed", "resource", what, "error", err)
	}
	writeJSON(w, status, dto.ActionResponse{Success: false, Message: msg})
}

// search ORs a case-insensitive LIKE over columns.
func search(q *gorm.DB, term string, columns ...string) *gorm.DB {
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + escapeLike(term) + "%"
	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		clauses[i] = "LOWER(" + col + ") LIKE LOWER(?) ESCAPE '\\'"
		args[i] = pattern
	}
	return q.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// statusFilter applies the ACTIVE/INACTIVE/all list filter on column.
func statusFilter(q *gorm.DB, p dto.ListParams, column string) *gorm.DB {
	if p.Status == dto.StatusFilterAll {
		return q
	}
	return q.Where(column+" = ?", p.Status)
}

// activeFilter is statusFilter for tables with an is_active flag.
func activeFilter(q *gorm.DB, p dto.ListParams, column string) *gorm.DB {
	switch p.Status {
	case dto.StatusFilterAll:
		return q
	case dto.StatusFilterInactive:
		return q.Where(column+" = ?", false)
	default:
		return q.Where(column+" = ?", true)
	}
}

// paginate counts q, then loads the requested page into dest. Preloads are
// attached after counting.
func paginate(q *gorm.DB, p dto.ListParams, order string, dest interface{}, preloads ...string) (int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	for _, rel := range preloads {
		q = q.Preload(rel)
	}
	err := q.Order(order).Offset(p.Offset()).Limit(p.PerPage).Find(dest).Error
	return total, err
}
