package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ZoneInput names the zone. OrganizationID is only honored for global admins.
// An empty Status leaves the current one unchanged on update.
type ZoneInput struct {
	OrganizationID uuid.UUID
	Name           string
	Status         models.Status
}

// GetZone returns a zone visible to scope.
func (s *Service) GetZone(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Zone, error) {
	return getZone(scope.Filter(s.db.WithContext(ctx), "organization_id"), id)
}

func getZone(db *gorm.DB, id uuid.UUID) (*models.Zone, error) {
	var zone models.Zone
	if err := db.First(&zone, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &zone, nil
}

func (s *Service) CreateZone(ctx context.Context, scope access.Scope, in ZoneInput) (*models.Zone, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return nil, err
	}

	zone := models.Zone{OrganizationID: orgID, Name: strings.TrimSpace(in.Name), Status: models.StatusActive}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := activeOrganization(tx, orgID); err != nil {
			return err
		}
		if err := checkZoneName(tx, orgID, zone.Name, uuid.Nil); err != nil {
			return err
		}
		return uniqueViolation(tx.Create(&zone).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

// UpdateZone renames a zone and may flip its status. Zones never move
// between organizations.
func (s *Service) UpdateZone(ctx context.Context, scope access.Scope, id uuid.UUID, in ZoneInput) (*models.Zone, error) {
	var zone *models.Zone
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if zone, err = getZone(scope.Filter(tx, "organization_id"), id); err != nil {
			return err
		}
		if !scope.CanManage(zone.OrganizationID) {
			return ErrForbidden
		}

		name := strings.TrimSpace(in.Name)
		status := nextStatus(zone.Status, in.Status)
		switch {
		case status == models.StatusActive:
			if zone.Status != models.StatusActive {
				if err := activeOrganization(tx, zone.OrganizationID); err != nil {
					return err
				}
			}
			if err := checkZoneName(tx, zone.OrganizationID, name, zone.ID); err != nil {
				return err
			}
		case zone.Status == models.StatusActive:
			if err := checkZoneEmpty(tx, zone.ID); err != nil {
				return err
			}
		}
		return uniqueViolation(tx.Model(zone).Updates(map[string]interface{}{
			"name":   name,
			"status": status,
		}).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// DeactivateZone soft-deletes a zone. It is refused while any ACTIVE device
// still sits in the zone; the check and the update share one transaction.
func (s *Service) DeactivateZone(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		zone, err := getZone(scope.Filter(tx, "organization_id"), id)
		if err != nil {
			return err
		}
		if !scope.CanManage(zone.OrganizationID) {
			return ErrForbidden
		}

		if err := checkZoneEmpty(tx, zone.ID); err != nil {
			return err
		}
		if err := tx.Model(zone).Update("status", models.StatusInactive).Error; err != nil {
			return fmt.Errorf("deactivating zone: %w", err)
		}
		return nil
	})
}

func checkZoneName(tx *gorm.DB, orgID uuid.UUID, name string, exceptID uuid.UUID) error {
	taken, err := exists(excludeID(tx.Model(&models.Zone{}).
		Where("organization_id = ? AND status = ? AND name = ?", orgID, models.StatusActive, name), exceptID))
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}

func checkZoneEmpty(tx *gorm.DB, zoneID uuid.UUID) error {
	inUse, err := exists(tx.Model(&models.Device{}).
		Where("zone_id = ? AND status = ?", zoneID, models.StatusActive))
	if err != nil {
		return err
	}
	if inUse {
		return ErrZoneInUse
	}
	return nil
}
