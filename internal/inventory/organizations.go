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

type OrganizationInput struct {
	Name     string
	IsActive *bool
}

func (s *Service) CreateOrganization(ctx context.Context, scope access.Scope, in OrganizationInput) (*models.Organization, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	org := models.Organization{Name: strings.TrimSpace(in.Name), IsActive: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkOrganizationName(tx, org.Name, uuid.Nil); err != nil {
			return err
		}
		return uniqueViolation(tx.Create(&org).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Service) UpdateOrganization(ctx context.Context, scope access.Scope, id uuid.UUID, in OrganizationInput) (*models.Organization, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	var org models.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&org, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		name := strings.TrimSpace(in.Name)
		if err := s.checkOrganizationName(tx, name, id); err != nil {
			return err
		}
		updates := map[string]interface{}{"name": name}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		return uniqueViolation(tx.Model(&org).Updates(updates).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Service) DeactivateOrganization(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if !scope.IsGlobal() {
		return ErrForbidden
	}
	result := s.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivating organization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) checkOrganizationName(tx *gorm.DB, name string, exceptID uuid.UUID) error {
	taken, err := exists(excludeID(tx.Model(&models.Organization{}).Where("LOWER(name) = LOWER(?)", name), exceptID))
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}

// activeOrganization fails unless id names an active organization.
func activeOrganization(tx *gorm.DB, id uuid.UUID) error {
	var org models.Organization
	if err := tx.First(&org, "id = ?", id).Error; err != nil {
		return notFound(err)
	}
	if !org.IsActive {
		return ErrOrganizationInactive
	}
	return nil
}
