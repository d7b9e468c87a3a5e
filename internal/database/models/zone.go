package models

import "github.com/google/uuid"

// Zone is a named location inside an organization, e.g. "Server Room".
// Names are unique per organization among ACTIVE zones only.
type Zone struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_zones_org_name_active,where:status = 'ACTIVE'" json:"organization_id"`
	Name           string    `gorm:"not null;size:120;uniqueIndex:idx_zones_org_name_active,where:status = 'ACTIVE'" json:"name"`
	Status         Status    `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Devices      []Device      `gorm:"foreignKey:ZoneID" json:"-"`
}

func (Zone) TableName() string {
	return "zones"
}
