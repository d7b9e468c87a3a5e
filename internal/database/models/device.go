package models

import "github.com/google/uuid"

// Device is a physical unit built from a Product and placed in a Zone of the
// same organization.
type Device struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_devices_org_name_active,where:status = 'ACTIVE'" json:"organization_id"`
	ZoneID         uuid.UUID `gorm:"type:uuid;index;not null" json:"zone_id"`
	ProductID      uuid.UUID `gorm:"type:uuid;index;not null" json:"product_id"`
	Name           string    `gorm:"not null;size:160;uniqueIndex:idx_devices_org_name_active,where:status = 'ACTIVE'" json:"name"`
	SerialNumber   string    `gorm:"size:120;index" json:"serial_number,omitempty"`
	MaxPowerW      int       `gorm:"not null" json:"max_power_w"`
	Status         Status    `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Zone         *Zone         `gorm:"foreignKey:ZoneID" json:"zone,omitempty"`
	Product      *Product      `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (Device) TableName() string {
	return "devices"
}
