package models

type Organization struct {
	Base
	Name     string `gorm:"uniqueIndex;not null;size:100" json:"name"`
	IsActive bool   `gorm:"default:true;index" json:"is_active"`

	// Relationships
	Zones    []Zone    `gorm:"foreignKey:OrganizationID" json:"-"`
	Profiles []Profile `gorm:"foreignKey:OrganizationID" json:"-"`
	Devices  []Device  `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}
