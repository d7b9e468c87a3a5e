// Package alerts decides which alert rule, if any, a measurement breaches.
package alerts

import (
	"sort"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
)

// Thresholds is a closed range with optional ends. Values on a bound are
// inside the range.
type Thresholds struct {
	Min *float64
	Max *float64
}

// Breached reports whether energy falls outside the range. A range without
// bounds is never breached.
func (t Thresholds) Breached(energy float64) bool {
	if t.Min != nil && energy < *t.Min {
		return true
	}
	if t.Max != nil && energy > *t.Max {
		return true
	}
	return false
}

// Match is the rule that fired and the bounds it was judged against.
type Match struct {
	Rule       models.AlertRule
	Thresholds Thresholds
	Overridden bool
}

// Applies reports whether a rule is a candidate for energy readings.
func Applies(rule *models.AlertRule) bool {
	return rule.Status == models.StatusActive && rule.Unit == models.UnitKWh
}

// Evaluate returns the first breached rule for a product's reading, or nil.
// Candidates are tried from highest severity down, then by name and id, so
// the result does not depend on the order rules were loaded in. An ACTIVE
// override for (product, rule) replaces both default bounds.
func Evaluate(productID uuid.UUID, energy float64, rules []models.AlertRule, overrides []models.ProductAlertRule) *Match {
	byRule := make(map[uuid.UUID]*models.ProductAlertRule, len(overrides))
	for i := range overrides {
		o := &overrides[i]
		if o.ProductID == productID && o.Status == models.StatusActive {
			byRule[o.AlertRuleID] = o
		}
	}

	candidates := make([]*models.AlertRule, 0, len(rules))
	for i := range rules {
		if Applies(&rules[i]) {
			candidates = append(candidates, &rules[i])
		}
	}
	sortCandidates(candidates)

	for _, rule := range candidates {
		th := Thresholds{Min: rule.DefaultMinThreshold, Max: rule.DefaultMaxThreshold}
		o, overridden := byRule[rule.ID]
		if overridden {
			th = Thresholds{Min: o.MinThreshold, Max: o.MaxThreshold}
		}
		if th.Breached(energy) {
			return &Match{Rule: *rule, Thresholds: th, Overridden: overridden}
		}
	}
	return nil
}

func sortCandidates(rules []*models.AlertRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}
