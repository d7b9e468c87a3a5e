// Package access decides which organizations a user may see and change.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUnknownUser  = errors.New("unknown user")
	ErrInactiveUser = errors.New("user is inactive")
)

// Scope is the set of organizations visible to one user. Exactly one of the
// following holds: All is true, OrganizationID is set, or the scope is empty.
// An empty scope is valid and simply matches nothing.
type Scope struct {
	UserID         uuid.UUID
	Role           string
	All            bool
	OrganizationID uuid.UUID
}

// Resolve derives the scope for a user. Unknown roles are treated as member.
// Non-global users without a profile get an empty scope.
func Resolve(user *models.User) Scope {
	s := Scope{UserID: user.ID, Role: normalizeRole(user.Role)}
	if s.Role == models.RoleGlobalAdmin {
		s.All = true
		return s
	}
	if user.Profile != nil {
		s.OrganizationID = user.Profile.OrganizationID
	}
	return s
}

func normalizeRole(role string) string {
	if models.ValidRole(role) {
		return role
	}
	return models.RoleMember
}

// Load fetches the user with its profile and resolves the scope. The lookup
// happens on every request so deactivations apply immediately.
func Load(ctx context.Context, db *gorm.DB, userID uuid.UUID) (Scope, *models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Preload("Profile").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Scope{}, nil, ErrUnknownUser
		}
		return Scope{}, nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		return Scope{}, nil, ErrInactiveUser
	}
	return Resolve(&user), &user, nil
}

func (s Scope) IsGlobal() bool {
	return s.All
}

// IsEmpty reports whether the scope matches no organization at all.
func (s Scope) IsEmpty() bool {
	return !s.All && s.OrganizationID == uuid.Nil
}

// Includes reports whether rows of orgID are visible.
func (s Scope) Includes(orgID uuid.UUID) bool {
	if s.All {
		return true
	}
	return s.OrganizationID != uuid.Nil && s.OrganizationID == orgID
}

// CanManage reports whether the user may create or change rows of orgID.
// Members never can.
func (s Scope) CanManage(orgID uuid.UUID) bool {
	if s.Role == models.RoleMember {
		return false
	}
	return s.Includes(orgID)
}

// CanWrite reports whether the role is allowed any tenant-level mutation.
func (s Scope) CanWrite() bool {
	return s.Role != models.RoleMember && !s.IsEmpty()
}

// Filter restricts a query to the scope. column names the organization
// foreign key, qualified when the query joins other tables.
func (s Scope) Filter(db *gorm.DB, column string) *gorm.DB {
	switch {
	case s.All:
		return db
	case s.OrganizationID == uuid.Nil:
		return db.Where("1 = 0")
	default:
		return db.Where(column+" = ?", s.OrganizationID)
	}
}

type scopeKey struct{}

func NewContext(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the request scope, or an empty scope when none was set.
func FromContext(ctx context.Context) Scope {
	if s, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return s
	}
	return Scope{Role: models.RoleMember}
}
