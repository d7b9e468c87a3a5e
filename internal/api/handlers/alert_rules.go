package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/tasks"
	"github.com/google/uuid"
)

// AlertRuleHandler manages alert rules and their per-product overrides.
// Every change schedules a re-evaluation of stored measurements.
type AlertRuleHandler struct {
	alerts   *alerts.Service
	enqueuer tasks.Enqueuer
	logger   *slog.Logger
}

// NewAlertRuleHandler builds the handler. enqueuer may be nil, in which case
// stored measurements are only re-evaluated by the periodic sweep.
func NewAlertRuleHandler(alertService *alerts.Service, enqueuer tasks.Enqueuer, logger *slog.Logger) *AlertRuleHandler {
	return &AlertRuleHandler{alerts: alertService, enqueuer: enqueuer, logger: logger}
}

type AlertRuleRequest struct {
	Name                string   `json:"name"`
	Severity            string   `json:"severity"`
	Unit                string   `json:"unit,omitempty"`
	DefaultMinThreshold *float64 `json:"default_min_threshold,omitempty"`
	DefaultMaxThreshold *float64 `json:"default_max_threshold,omitempty"`
	Status              string   `json:"status,omitempty"`
}

func (r AlertRuleRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.LengthBetween(strings.TrimSpace(r.Name), 3, 120) {
		errors.Add("name", "Name must be 3 to 120 characters")
	}
	if !models.Severity(r.Severity).Valid() {
		errors.Add("severity", "Severity must be LOW, MEDIUM, HIGH or CRITICAL")
	}
	if r.Unit != "" && r.Unit != models.UnitKWh && r.Unit != models.UnitW {
		errors.Add("unit", "Unit must be kWh or W")
	}
	if r.Status != "" && !models.Status(r.Status).Valid() {
		errors.Add("status", "Status must be ACTIVE or INACTIVE")
	}
	validation.CheckBounds(errors, "default_min_threshold", r.DefaultMinThreshold, "default_max_threshold", r.DefaultMaxThreshold)
	return errors
}

func (r AlertRuleRequest) input() alerts.RuleInput {
	return alerts.RuleInput{
		Name:     r.Name,
		Severity: models.Severity(r.Severity),
		Unit:     r.Unit,
		Min:      r.DefaultMinThreshold,
		Max:      r.DefaultMaxThreshold,
		Status:   models.Status(r.Status),
	}
}

type OverrideRequest struct {
	ProductID    string   `json:"product_id"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
}

func (r OverrideRequest) Validate() validation.Errors {
	errors := validation.Errors{}
	if !validation.IsValidUUID(r.ProductID) {
		errors.Add("product_id", "Product is required")
	}
	validation.CheckBounds(errors, "min_threshold", r.MinThreshold, "max_threshold", r.MaxThreshold)
	return errors
}

type OverrideResponse struct {
	ID           string   `json:"id"`
	ProductID    string   `json:"product_id"`
	AlertRuleID  string   `json:"alert_rule_id"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
	Status       string   `json:"status"`
}

func overrideToResponse(o *models.ProductAlertRule) OverrideResponse {
	return OverrideResponse{
		ID:           o.ID.String(),
		ProductID:    o.ProductID.String(),
		AlertRuleID:  o.AlertRuleID.String(),
		MinThreshold: o.MinThreshold,
		MaxThreshold: o.MaxThreshold,
		Status:       string(o.Status),
	}
}

type AlertRuleResponse struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Severity            string             `json:"severity"`
	Unit                string             `json:"unit"`
	DefaultMinThreshold *float64           `json:"default_min_threshold,omitempty"`
	DefaultMaxThreshold *float64           `json:"default_max_threshold,omitempty"`
	Status              string             `json:"status"`
	Overrides           []OverrideResponse `json:"overrides,omitempty"`
}

func alertRuleToResponse(rule *models.AlertRule) AlertRuleResponse {
	resp := AlertRuleResponse{
		ID:                  rule.ID.String(),
		Name:                rule.Name,
		Severity:            string(rule.Severity),
		Unit:                rule.Unit,
		DefaultMinThreshold: rule.DefaultMinThreshold,
		DefaultMaxThreshold: rule.DefaultMaxThreshold,
		Status:              string(rule.Status),
	}
	for i := range rule.Overrides {
		resp.Overrides = append(resp.Overrides, overrideToResponse(&rule.Overrides[i]))
	}
	return resp
}

// reevaluate schedules a background run. Failure to enqueue is logged, not
// returned: the rule change itself has been stored.
func (h *AlertRuleHandler) reevaluate(ctx context.Context, productID uuid.UUID, reason string) {
	err := tasks.EnqueueReevaluation(ctx, h.enqueuer, tasks.ReevaluatePayload{
		ProductID: productID,
		Reason:    reason,
	})
	if err != nil {
		h.logger.Warn("failed to enqueue re-evaluation", "error", err, "reason", reason)
	}
}

// List handles GET /api/v1/alert-rules
func (h *AlertRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	p := dto.ParseListParams(r)
	status := p.Status
	if status == dto.StatusFilterAll {
		status = ""
	}

	rules, err := h.alerts.ListRules(r.Context(), status)
	if err != nil {
		h.logger.Error("listing alert rules", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list alert rules")
		return
	}

	response := make([]AlertRuleResponse, len(rules))
	for i := range rules {
		response[i] = alertRuleToResponse(&rules[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/alert-rules/{id}
func (h *AlertRuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.alerts.GetRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Alert rule")
		return
	}
	writeJSON(w, http.StatusOK, alertRuleToResponse(rule))
}

// Create handles POST /api/v1/alert-rules
func (h *AlertRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AlertRuleRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	rule, err := h.alerts.CreateRule(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Alert rule")
		return
	}
	h.reevaluate(r.Context(), uuid.Nil, "rule created")
	writeJSON(w, http.StatusCreated, alertRuleToResponse(rule))
}

// Update handles PUT /api/v1/alert-rules/{id}
func (h *AlertRuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AlertRuleRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	rule, err := h.alerts.UpdateRule(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Alert rule")
		return
	}
	h.reevaluate(r.Context(), uuid.Nil, "rule updated")
	writeJSON(w, http.StatusOK, alertRuleToResponse(rule))
}

// Delete handles DELETE /api/v1/alert-rules/{id}
func (h *AlertRuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.alerts.DeactivateRule(r.Context(), access.FromContext(r.Context()), id)
	if err == nil {
		h.reevaluate(r.Context(), uuid.Nil, "rule deactivated")
	}
	writeDeactivated(w, h.logger, err, "Alert rule")
}

// SetOverride handles PUT /api/v1/alert-rules/{id}/overrides
func (h *AlertRuleHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OverrideRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	override, err := h.alerts.SetOverride(r.Context(), access.FromContext(r.Context()), id, alerts.OverrideInput{
		ProductID: parseOptionalID(req.ProductID),
		Min:       req.MinThreshold,
		Max:       req.MaxThreshold,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Alert rule")
		return
	}
	h.reevaluate(r.Context(), override.ProductID, "override set")
	writeJSON(w, http.StatusOK, overrideToResponse(override))
}

// DeleteOverride handles DELETE /api/v1/alert-rules/{id}/overrides/{productID}
func (h *AlertRuleHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	err := h.alerts.DeactivateOverride(r.Context(), access.FromContext(r.Context()), id, productID)
	if err == nil {
		h.reevaluate(r.Context(), productID, "override deactivated")
	}
	writeDeactivated(w, h.logger, err, "Override")
}
