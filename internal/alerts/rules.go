package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrRuleNotFound      = errors.New("alert rule not found")
	ErrOverrideNotFound  = errors.New("override not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidThresholds = errors.New("minimum threshold exceeds maximum")
)

type RuleInput struct {
	Name     string
	Severity models.Severity
	Unit     string
	Min      *float64
	Max      *float64
	Status   models.Status
}

type OverrideInput struct {
	ProductID uuid.UUID
	Min       *float64
	Max       *float64
}

func checkBounds(min, max *float64) error {
	if min != nil && max != nil && *min > *max {
		return ErrInvalidThresholds
	}
	return nil
}

func (s *Service) ListRules(ctx context.Context, status string) ([]models.AlertRule, error) {
	q := s.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rules []models.AlertRule
	if err := q.Order("name ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("listing alert rules: %w", err)
	}
	return rules, nil
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := s.db.WithContext(ctx).Preload("Overrides").First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (s *Service) CreateRule(ctx context.Context, scope access.Scope, in RuleInput) (*models.AlertRule, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	if err := checkBounds(in.Min, in.Max); err != nil {
		return nil, err
	}
	rule := models.AlertRule{
		Name:                strings.TrimSpace(in.Name),
		Severity:            in.Severity,
		Unit:                in.Unit,
		DefaultMinThreshold: in.Min,
		DefaultMaxThreshold: in.Max,
		Status:              models.StatusActive,
	}
	if rule.Unit == "" {
		rule.Unit = models.UnitKWh
	}
	if err := s.db.WithContext(ctx).Omit("Overrides").Create(&rule).Error; err != nil {
		return nil, fmt.Errorf("creating alert rule: %w", err)
	}
	s.logger.Info("alert rule created", "rule_id", rule.ID, "severity", rule.Severity)
	return &rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, scope access.Scope, id uuid.UUID, in RuleInput) (*models.AlertRule, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	if err := checkBounds(in.Min, in.Max); err != nil {
		return nil, err
	}
	var rule models.AlertRule
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	unit := in.Unit
	if unit == "" {
		unit = rule.Unit
	}
	updates := map[string]interface{}{
		"name":                  strings.TrimSpace(in.Name),
		"severity":              in.Severity,
		"unit":                  unit,
		"default_min_threshold": in.Min,
		"default_max_threshold": in.Max,
	}
	if in.Status != "" {
		updates["status"] = in.Status
	}
	if err := s.db.WithContext(ctx).Model(&rule).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating alert rule: %w", err)
	}
	return s.GetRule(ctx, id)
}

func (s *Service) DeactivateRule(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if !scope.IsGlobal() {
		return ErrForbidden
	}
	result := s.db.WithContext(ctx).Model(&models.AlertRule{}).
		Where("id = ?", id).
		Update("status", models.StatusInactive)
	if result.Error != nil {
		return fmt.Errorf("deactivating alert rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SetOverride creates or replaces the product-specific bounds of a rule.
// The pair (product, rule) has at most one row; setting it again reactivates it.
func (s *Service) SetOverride(ctx context.Context, scope access.Scope, ruleID uuid.UUID, in OverrideInput) (*models.ProductAlertRule, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	if err := checkBounds(in.Min, in.Max); err != nil {
		return nil, err
	}

	var override models.ProductAlertRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.AlertRule{}).Where("id = ?", ruleID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrRuleNotFound
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", in.ProductID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrProductNotFound
		}

		err := tx.Where("product_id = ? AND alert_rule_id = ?", in.ProductID, ruleID).First(&override).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			override = models.ProductAlertRule{
				ProductID:    in.ProductID,
				AlertRuleID:  ruleID,
				MinThreshold: in.Min,
				MaxThreshold: in.Max,
				Status:       models.StatusActive,
			}
			return tx.Omit("Product", "AlertRule").Create(&override).Error
		case err != nil:
			return err
		}
		return tx.Model(&override).Updates(map[string]interface{}{
			"min_threshold": in.Min,
			"max_threshold": in.Max,
			"status":        models.StatusActive,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &override, nil
}

// DeactivateOverride returns the product to the rule defaults.
func (s *Service) DeactivateOverride(ctx context.Context, scope access.Scope, ruleID, productID uuid.UUID) error {
	if !scope.IsGlobal() {
		return ErrForbidden
	}
	result := s.db.WithContext(ctx).Model(&models.ProductAlertRule{}).
		Where("alert_rule_id = ? AND product_id = ?", ruleID, productID).
		Update("status", models.StatusInactive)
	if result.Error != nil {
		return fmt.Errorf("deactivating override: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOverrideNotFound
	}
	return nil
}
