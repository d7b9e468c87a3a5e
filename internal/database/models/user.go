package models

import "github.com/google/uuid"

const (
	RoleGlobalAdmin = "global_admin"
	RoleOrgAdmin    = "org_admin"
	RoleMember      = "member"
)

// ValidRole reports whether role is one of the three assignable roles.
func ValidRole(role string) bool {
	switch role {
	case RoleGlobalAdmin, RoleOrgAdmin, RoleMember:
		return true
	}
	return false
}

// User is the login account. Tenant membership lives on Profile.
type User struct {
	Base
	Username     string `gorm:"uniqueIndex;not null;size:150" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Role         string `gorm:"not null;default:'member';index" json:"role"`
	IsActive     bool   `gorm:"default:true;index" json:"is_active"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Profile carries the person's details and the organization they belong to.
type Profile struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null;size:100;index" json:"name"`
	Phone          string    `gorm:"uniqueIndex;not null;size:9" json:"phone"`
	AvatarURL      string    `json:"avatar_url,omitempty"`

	User         *User         `gorm:"foreignKey:UserID" json:"-"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (Profile) TableName() string {
	return "profiles"
}
