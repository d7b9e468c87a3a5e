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

// DeviceInput describes a device. OrganizationID is only honored for global
// admins; other users always write into their own organization. Status is
// read on update only, and empty keeps the current one.
type DeviceInput struct {
	OrganizationID uuid.UUID
	ZoneID         uuid.UUID
	ProductID      uuid.UUID
	Name           string
	SerialNumber   string
	MaxPowerW      int
	Status         models.Status
}

// GetDevice returns a device visible to scope with its zone and product.
func (s *Service) GetDevice(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	err := scope.Filter(s.db.WithContext(ctx), "organization_id").
		Preload("Zone").
		Preload("Product").
		Preload("Organization").
		First(&device, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (s *Service) CreateDevice(ctx context.Context, scope access.Scope, in DeviceInput) (*models.Device, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return nil, err
	}

	device := models.Device{
		OrganizationID: orgID,
		ZoneID:         in.ZoneID,
		ProductID:      in.ProductID,
		Name:           strings.TrimSpace(in.Name),
		SerialNumber:   strings.TrimSpace(in.SerialNumber),
		MaxPowerW:      in.MaxPowerW,
		Status:         models.StatusActive,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := activeOrganization(tx, orgID); err != nil {
			return err
		}
		if err := checkDeviceRefs(tx, orgID, in.ZoneID, in.ProductID); err != nil {
			return err
		}
		if err := checkDeviceName(tx, orgID, device.Name, uuid.Nil); err != nil {
			return err
		}
		return uniqueViolation(tx.Omit("Organization", "Zone", "Product").Create(&device).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("device created", "device_id", device.ID, "organization_id", orgID)
	return s.GetDevice(ctx, scope, device.ID)
}

// UpdateDevice edits a device. A global admin may move it to another
// organization, provided the zone moves with it. Reactivating a device
// requires its organization, zone and product to be ACTIVE and its name to
// be free again.
func (s *Service) UpdateDevice(ctx context.Context, scope access.Scope, id uuid.UUID, in DeviceInput) (*models.Device, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device models.Device
		if err := scope.Filter(tx, "organization_id").First(&device, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if !scope.CanManage(device.OrganizationID) {
			return ErrForbidden
		}

		orgID := device.OrganizationID
		if scope.IsGlobal() && in.OrganizationID != uuid.Nil {
			orgID = in.OrganizationID
		}
		status := nextStatus(device.Status, in.Status)
		if orgID != device.OrganizationID || (status == models.StatusActive && device.Status != models.StatusActive) {
			if err := activeOrganization(tx, orgID); err != nil {
				return err
			}
		}
		if err := checkDeviceRefs(tx, orgID, in.ZoneID, in.ProductID); err != nil {
			return err
		}
		name := strings.TrimSpace(in.Name)
		if status == models.StatusActive {
			if err := checkDeviceName(tx, orgID, name, device.ID); err != nil {
				return err
			}
		}

		err := tx.Model(&device).Updates(map[string]interface{}{
			"organization_id": orgID,
			"zone_id":         in.ZoneID,
			"product_id":      in.ProductID,
			"name":            name,
			"serial_number":   strings.TrimSpace(in.SerialNumber),
			"max_power_w":     in.MaxPowerW,
			"status":          status,
		}).Error
		return uniqueViolation(err, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDevice(ctx, scope, id)
}

func (s *Service) DeactivateDevice(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device models.Device
		if err := scope.Filter(tx, "organization_id").First(&device, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if !scope.CanManage(device.OrganizationID) {
			return ErrForbidden
		}
		if err := tx.Model(&device).Update("status", models.StatusInactive).Error; err != nil {
			return fmt.Errorf("deactivating device: %w", err)
		}
		return nil
	})
}

// checkDeviceRefs enforces zone.organization == device.organization and
// that both the zone and the product are ACTIVE.
func checkDeviceRefs(tx *gorm.DB, orgID, zoneID, productID uuid.UUID) error {
	var zone models.Zone
	if err := tx.First(&zone, "id = ?", zoneID).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return ErrZoneMismatch
		}
		return err
	}
	if zone.OrganizationID != orgID {
		return ErrZoneMismatch
	}
	if zone.Status != models.StatusActive {
		return ErrZoneInactive
	}

	var product models.Product
	if err := tx.First(&product, "id = ?", productID).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return ErrProductInactive
		}
		return err
	}
	if product.Status != models.StatusActive {
		return ErrProductInactive
	}
	return nil
}

func checkDeviceName(tx *gorm.DB, orgID uuid.UUID, name string, exceptID uuid.UUID) error {
	taken, err := exists(excludeID(tx.Model(&models.Device{}).
		Where("organization_id = ? AND status = ? AND name = ?", orgID, models.StatusActive, name), exceptID))
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}
