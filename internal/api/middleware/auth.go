package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type contextKey string

const (
	UserIDKey         contextKey = "user_id"
	OrganizationIDKey contextKey = "organization_id"
	UsernameKey       contextKey = "username"
	UserRoleKey       contextKey = "user_role"
)

// Auth rejects requests without a valid session token and stores the token
// claims in the context. Expired tokens get a distinct message so clients
// can prompt for a new login.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.Parse(raw)
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "Unauthorized: session expired")
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID())
			ctx = context.WithValue(ctx, OrganizationIDKey, claims.OrganizationID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			noteCaller(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest checks, in order, the Authorization header, the "token"
// cookie and the X-Auth-Token header.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get("X-Auth-Token")
}

// Scope resolves the caller's access scope from the database and stores it
// in the request context. Role and organization in the token are not
// trusted past this point, so role changes and deactivations apply at once.
func Scope(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, _, err := access.Load(r.Context(), db, GetUserID(r.Context()))
			if err != nil {
				if errors.Is(err, access.ErrUnknownUser) || errors.Is(err, access.ErrInactiveUser) {
					writeError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "Failed to resolve permissions")
				return
			}

			ctx := access.NewContext(r.Context(), scope)
			ctx = context.WithValue(ctx, UserRoleKey, scope.Role)
			ctx = context.WithValue(ctx, OrganizationIDKey, scope.OrganizationID)
			noteCaller(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetOrganizationID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(OrganizationIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUsername(ctx context.Context) string {
	if name, ok := ctx.Value(UsernameKey).(string); ok {
		return name
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

// RequireRole middleware ensures user has specific role
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}
