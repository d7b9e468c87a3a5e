package models

import "github.com/google/uuid"

type Category struct {
	Base
	Name   string `gorm:"not null;size:120;uniqueIndex:idx_categories_name_active,where:status = 'ACTIVE'" json:"name"`
	Status Status `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

// Product is a catalog entry (a model specification), not a physical unit.
type Product struct {
	Base
	CategoryID      uuid.UUID `gorm:"type:uuid;index;not null" json:"category_id"`
	Name            string    `gorm:"not null;size:160;index" json:"name"`
	SKU             string    `gorm:"column:sku;uniqueIndex;not null;size:80" json:"sku"`
	Manufacturer    string    `gorm:"size:120" json:"manufacturer,omitempty"`
	ModelName       string    `gorm:"size:120" json:"model_name,omitempty"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	NominalVoltageV *float64  `json:"nominal_voltage_v,omitempty"`
	MaxCurrentA     *float64  `json:"max_current_a,omitempty"`
	StandbyPowerW   *float64  `json:"standby_power_w,omitempty"`
	Status          Status    `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Product) TableName() string {
	return "products"
}
