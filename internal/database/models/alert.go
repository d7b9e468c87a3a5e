package models

import "github.com/google/uuid"

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities; unknown values rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

const (
	UnitKWh = "kWh"
	UnitW   = "W"
)

// AlertRule is a named threshold policy. Either bound may be open.
type AlertRule struct {
	Base
	Name                string   `gorm:"not null;size:120" json:"name"`
	Severity            Severity `gorm:"not null;index" json:"severity"`
	Unit                string   `gorm:"not null;size:16;default:'kWh'" json:"unit"`
	DefaultMinThreshold *float64 `json:"default_min_threshold,omitempty"`
	DefaultMaxThreshold *float64 `json:"default_max_threshold,omitempty"`
	Status              Status   `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Overrides []ProductAlertRule `gorm:"foreignKey:AlertRuleID" json:"-"`
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

// ProductAlertRule replaces an AlertRule's default bounds for one product.
type ProductAlertRule struct {
	Base
	ProductID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_alert_rules_pair" json:"product_id"`
	AlertRuleID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_alert_rules_pair" json:"alert_rule_id"`
	MinThreshold *float64  `json:"min_threshold,omitempty"`
	MaxThreshold *float64  `json:"max_threshold,omitempty"`
	Status       Status    `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Product   *Product   `gorm:"foreignKey:ProductID" json:"-"`
	AlertRule *AlertRule `gorm:"foreignKey:AlertRuleID" json:"-"`
}

func (ProductAlertRule) TableName() string {
	return "product_alert_rules"
}
