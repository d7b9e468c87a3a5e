package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the soft-delete lifecycle shared by every catalog and inventory
// table. Rows are never removed; they flip to INACTIVE.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Base model with UUID primary key and timestamps
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Organization{},
		&User{},
		&Profile{},
		&Zone{},
		&Category{},
		&Product{},
		&Device{},
		&AlertRule{},
		&ProductAlertRule{},
		&Measurement{},
	}
}
