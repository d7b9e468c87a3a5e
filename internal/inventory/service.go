// Package inventory enforces the write rules for organizations, zones,
// devices and the product catalog.
package inventory

import (
	"errors"
	"log/slog"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrNameTaken            = errors.New("name already in use")
	ErrSKUTaken             = errors.New("sku already in use")
	ErrZoneInUse            = errors.New("zone has active devices")
	ErrZoneMismatch         = errors.New("zone does not belong to the organization")
	ErrZoneInactive         = errors.New("zone is inactive")
	ErrProductInactive      = errors.New("product is inactive")
	ErrCategoryInactive     = errors.New("category is inactive")
	ErrOrganizationInactive = errors.New("organization is inactive")
	ErrOrganizationRequired = errors.New("organization is required")
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// targetOrganization picks the organization a new row belongs to. Global
// admins choose; everyone else is pinned to their own organization.
func targetOrganization(scope access.Scope, requested uuid.UUID) (uuid.UUID, error) {
	if scope.IsGlobal() {
		if requested == uuid.Nil {
			return uuid.Nil, ErrOrganizationRequired
		}
		return requested, nil
	}
	if !scope.CanWrite() {
		return uuid.Nil, ErrForbidden
	}
	return scope.OrganizationID, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// uniqueViolation maps a unique index rejection to taken. The pre-insert
// checks cover the common case; this catches the loser of a concurrent race.
func uniqueViolation(err, taken error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return taken
	}
	return err
}

// nextStatus is the status an update leaves behind. Empty keeps the current one.
func nextStatus(current, requested models.Status) models.Status {
	if requested == "" {
		return current
	}
	return requested
}

func exists(q *gorm.DB) (bool, error) {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func excludeID(q *gorm.DB, id uuid.UUID) *gorm.DB {
	if id != uuid.Nil {
		return q.Where("id <> ?", id)
	}
	return q
}
