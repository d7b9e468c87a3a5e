package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinEnergyKWh = 0
	MaxEnergyKWh = 10000
)

// Measurement is one energy reading for a device. OrganizationID is copied
// from the device at insert time so reads can be scoped without a join.
type Measurement struct {
	Base
	OrganizationID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	DeviceID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"device_id"`
	EnergyKWh        float64    `gorm:"column:energy_kwh;not null" json:"energy_kwh"`
	MeasuredAt       time.Time  `gorm:"index;not null" json:"measured_at"`
	TriggeredAlertID *uuid.UUID `gorm:"type:uuid;index" json:"triggered_alert_id,omitempty"`
	Status           Status     `gorm:"not null;default:'ACTIVE';index" json:"status"`

	Device         *Device    `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	TriggeredAlert *AlertRule `gorm:"foreignKey:TriggeredAlertID" json:"triggered_alert,omitempty"`
}

func (Measurement) TableName() string {
	return "measurements"
}
