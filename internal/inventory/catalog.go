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

// CategoryInput and ProductInput carry an optional Status that only updates
// read. Empty keeps the current one.
type CategoryInput struct {
	Name   string
	Status models.Status
}

type ProductInput struct {
	CategoryID      uuid.UUID
	Name            string
	SKU             string
	Manufacturer    string
	ModelName       string
	Description     string
	NominalVoltageV *float64
	MaxCurrentA     *float64
	StandbyPowerW   *float64
	Status          models.Status
}

func (s *Service) CreateCategory(ctx context.Context, scope access.Scope, in CategoryInput) (*models.Category, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	category := models.Category{Name: strings.TrimSpace(in.Name), Status: models.StatusActive}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategoryName(tx, category.Name, uuid.Nil); err != nil {
			return err
		}
		return uniqueViolation(tx.Create(&category).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, scope access.Scope, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	var category models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		name := strings.TrimSpace(in.Name)
		status := nextStatus(category.Status, in.Status)
		if status == models.StatusActive {
			if err := checkCategoryName(tx, name, id); err != nil {
				return err
			}
		}
		return uniqueViolation(tx.Model(&category).Updates(map[string]interface{}{
			"name":   name,
			"status": status,
		}).Error, ErrNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Service) DeactivateCategory(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if !scope.IsGlobal() {
		return ErrForbidden
	}
	return s.setStatus(ctx, &models.Category{}, id, models.StatusInactive)
}

func (s *Service) CreateProduct(ctx context.Context, scope access.Scope, in ProductInput) (*models.Product, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	product := productFromInput(in)
	product.Status = models.StatusActive
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkProductRefs(tx, product.CategoryID, product.SKU, uuid.Nil); err != nil {
			return err
		}
		return uniqueViolation(tx.Omit("Category").Create(&product).Error, ErrSKUTaken)
	})
	if err != nil {
		return nil, err
	}
	return s.getProduct(ctx, product.ID)
}

func (s *Service) UpdateProduct(ctx context.Context, scope access.Scope, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if !scope.IsGlobal() {
		return nil, ErrForbidden
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		next := productFromInput(in)
		if err := checkProductRefs(tx, next.CategoryID, next.SKU, id); err != nil {
			return err
		}
		err := tx.Model(&existing).Updates(map[string]interface{}{
			"category_id":       next.CategoryID,
			"name":              next.Name,
			"sku":               next.SKU,
			"manufacturer":      next.Manufacturer,
			"model_name":        next.ModelName,
			"description":       next.Description,
			"nominal_voltage_v": next.NominalVoltageV,
			"max_current_a":     next.MaxCurrentA,
			"standby_power_w":   next.StandbyPowerW,
			"status":            nextStatus(existing.Status, in.Status),
		}).Error
		return uniqueViolation(err, ErrSKUTaken)
	})
	if err != nil {
		return nil, err
	}
	return s.getProduct(ctx, id)
}

func (s *Service) DeactivateProduct(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if !scope.IsGlobal() {
		return ErrForbidden
	}
	return s.setStatus(ctx, &models.Product{}, id, models.StatusInactive)
}

func (s *Service) getProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func productFromInput(in ProductInput) models.Product {
	return models.Product{
		CategoryID:      in.CategoryID,
		Name:            strings.TrimSpace(in.Name),
		SKU:             strings.TrimSpace(in.SKU),
		Manufacturer:    strings.TrimSpace(in.Manufacturer),
		ModelName:       strings.TrimSpace(in.ModelName),
		Description:     strings.TrimSpace(in.Description),
		NominalVoltageV: in.NominalVoltageV,
		MaxCurrentA:     in.MaxCurrentA,
		StandbyPowerW:   in.StandbyPowerW,
	}
}

// checkProductRefs enforces an ACTIVE category and a globally unique SKU.
// SKUs of INACTIVE products stay reserved.
func checkProductRefs(tx *gorm.DB, categoryID uuid.UUID, sku string, exceptID uuid.UUID) error {
	var category models.Category
	if err := tx.First(&category, "id = ?", categoryID).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return ErrCategoryInactive
		}
		return err
	}
	if category.Status != models.StatusActive {
		return ErrCategoryInactive
	}

	taken, err := exists(excludeID(tx.Model(&models.Product{}).Where("sku = ?", sku), exceptID))
	if err != nil {
		return err
	}
	if taken {
		return ErrSKUTaken
	}
	return nil
}

func checkCategoryName(tx *gorm.DB, name string, exceptID uuid.UUID) error {
	taken, err := exists(excludeID(tx.Model(&models.Category{}).
		Where("status = ? AND name = ?", models.StatusActive, name), exceptID))
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}

func (s *Service) setStatus(ctx context.Context, model interface{}, id uuid.UUID, status models.Status) error {
	result := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
