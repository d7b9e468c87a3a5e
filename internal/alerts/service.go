package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEnergyOutOfRange = errors.New("energy reading out of range")
	ErrDeviceInactive   = errors.New("device is inactive")
)

const reevaluateBatchSize = 500

type Service struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.DomainMetrics // Optional metrics
}

func NewService(db *gorm.DB, logger *slog.Logger, m *metrics.DomainMetrics) *Service {
	return &Service{db: db, logger: logger, metrics: m}
}

// Candidates loads the rules and the product's overrides used for evaluation.
func (s *Service) Candidates(ctx context.Context, productID uuid.UUID) ([]models.AlertRule, []models.ProductAlertRule, error) {
	rules, err := s.activeRules(ctx)
	if err != nil {
		return nil, nil, err
	}

	var overrides []models.ProductAlertRule
	if err := s.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, models.StatusActive).
		Find(&overrides).Error; err != nil {
		return nil, nil, fmt.Errorf("loading overrides: %w", err)
	}
	return rules, overrides, nil
}

func (s *Service) activeRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := s.db.WithContext(ctx).
		Where("status = ? AND unit = ?", models.StatusActive, models.UnitKWh).
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("loading alert rules: %w", err)
	}
	return rules, nil
}

// RecordMeasurement evaluates and stores one reading for an ACTIVE device.
// A zero measuredAt means now.
func (s *Service) RecordMeasurement(ctx context.Context, device *models.Device, energy float64, measuredAt time.Time) (*models.Measurement, error) {
	if energy < models.MinEnergyKWh || energy > models.MaxEnergyKWh {
		return nil, ErrEnergyOutOfRange
	}
	if device.Status != models.StatusActive {
		return nil, ErrDeviceInactive
	}
	if measuredAt.IsZero() {
		measuredAt = time.Now()
	}

	rules, overrides, err := s.Candidates(ctx, device.ProductID)
	if err != nil {
		return nil, err
	}

	m := models.Measurement{
		OrganizationID: device.OrganizationID,
		DeviceID:       device.ID,
		EnergyKWh:      energy,
		MeasuredAt:     measuredAt.UTC(),
		Status:         models.StatusActive,
	}

	var severity string
	if match := Evaluate(device.ProductID, energy, rules, overrides); match != nil {
		m.TriggeredAlertID = &match.Rule.ID
		m.TriggeredAlert = &match.Rule
		severity = string(match.Rule.Severity)
	}

	if err := s.db.WithContext(ctx).Omit("Device", "TriggeredAlert").Create(&m).Error; err != nil {
		return nil, fmt.Errorf("creating measurement: %w", err)
	}

	s.metrics.MeasurementRecorded(severity)
	if severity != "" {
		s.logger.Info("alert triggered",
			"measurement_id", m.ID,
			"device_id", device.ID,
			"rule_id", m.TriggeredAlertID,
			"severity", severity,
			"energy_kwh", energy,
		)
	}

	return &m, nil
}

// ReevaluateFilter narrows a re-evaluation. Zero values mean no restriction.
type ReevaluateFilter struct {
	ProductID      uuid.UUID
	OrganizationID uuid.UUID
}

type measurementRow struct {
	ID               uuid.UUID
	EnergyKWh        float64 `gorm:"column:energy_kwh"`
	TriggeredAlertID *uuid.UUID
	ProductID        uuid.UUID
}

// Reevaluate recomputes the triggered alert of every ACTIVE measurement that
// matches the filter and returns how many rows changed.
func (s *Service) Reevaluate(ctx context.Context, filter ReevaluateFilter) (changed int, err error) {
	defer func() { s.metrics.ReevaluationFinished(changed, err) }()

	rules, err := s.activeRules(ctx)
	if err != nil {
		return 0, err
	}

	overrideQuery := s.db.WithContext(ctx).Where("status = ?", models.StatusActive)
	if filter.ProductID != uuid.Nil {
		overrideQuery = overrideQuery.Where("product_id = ?", filter.ProductID)
	}
	var overrides []models.ProductAlertRule
	if err := overrideQuery.Find(&overrides).Error; err != nil {
		return 0, fmt.Errorf("loading overrides: %w", err)
	}
	byProduct := make(map[uuid.UUID][]models.ProductAlertRule)
	for _, o := range overrides {
		byProduct[o.ProductID] = append(byProduct[o.ProductID], o)
	}

	var lastID *uuid.UUID
	for {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		q := s.db.WithContext(ctx).
			Table("measurements").
			Select("measurements.id, measurements.energy_kwh, measurements.triggered_alert_id, devices.product_id").
			Joins("JOIN devices ON devices.id = measurements.device_id").
			Where("measurements.status = ?", models.StatusActive)
		if filter.ProductID != uuid.Nil {
			q = q.Where("devices.product_id = ?", filter.ProductID)
		}
		if filter.OrganizationID != uuid.Nil {
			q = q.Where("measurements.organization_id = ?", filter.OrganizationID)
		}
		if lastID != nil {
			q = q.Where("measurements.id > ?", *lastID)
		}

		var rows []measurementRow
		if err := q.Order("measurements.id").Limit(reevaluateBatchSize).Scan(&rows).Error; err != nil {
			return changed, fmt.Errorf("loading measurements: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		n, err := s.applyBatch(ctx, rows, rules, byProduct)
		changed += n
		if err != nil {
			return changed, err
		}

		id := rows[len(rows)-1].ID
		lastID = &id
		if len(rows) < reevaluateBatchSize {
			break
		}
	}

	s.logger.Info("alert re-evaluation finished",
		"product_id", filter.ProductID,
		"organization_id", filter.OrganizationID,
		"changed", changed,
	)
	return changed, nil
}

func (s *Service) applyBatch(ctx context.Context, rows []measurementRow, rules []models.AlertRule, byProduct map[uuid.UUID][]models.ProductAlertRule) (int, error) {
	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			var next *uuid.UUID
			if match := Evaluate(row.ProductID, row.EnergyKWh, rules, byProduct[row.ProductID]); match != nil {
				id := match.Rule.ID
				next = &id
			}
			if sameAlert(row.TriggeredAlertID, next) {
				continue
			}

			var value interface{} = gorm.Expr("NULL")
			if next != nil {
				value = *next
			}
			if err := tx.Model(&models.Measurement{}).
				Where("id = ?", row.ID).
				Update("triggered_alert_id", value).Error; err != nil {
				return fmt.Errorf("updating measurement %s: %w", row.ID, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func sameAlert(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
