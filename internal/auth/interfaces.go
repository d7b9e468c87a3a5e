package auth

import (
	"context"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AccountManager defines the interface for administering user accounts.
type AccountManager interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	Issue(id Identity) (string, error)
	Parse(raw string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator  = (*Service)(nil)
	_ AccountManager = (*Service)(nil)
	_ TokenService   = (*JWTService)(nil)
)
