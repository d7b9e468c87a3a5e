package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, svc *auth.JWTService, role string) (string, auth.Identity) {
	t.Helper()
	id := auth.Identity{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Username:       "operator_" + role,
		Role:           role,
	}
	raw, err := svc.Issue(id)
	require.NoError(t, err)
	return raw, id
}

func TestAuth_TokenSources(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)
	raw, id := issue(t, svc, "org_admin")

	tests := []struct {
		name  string
		apply func(*http.Request)
	}{
		{"authorization header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+raw) }},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: raw}) }},
		{"x-auth-token header", func(r *http.Request) { r.Header.Set("X-Auth-Token", raw) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				assert.Equal(t, id.UserID, GetUserID(r.Context()))
				assert.Equal(t, id.OrganizationID, GetOrganizationID(r.Context()))
				assert.Equal(t, id.Username, GetUsername(r.Context()))
				assert.Equal(t, id.Role, GetUserRole(r.Context()))
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest("GET", "/api/v1/devices", nil)
			tt.apply(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.True(t, called)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

func TestAuth_Rejects(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)
	otherRaw, _ := issue(t, auth.NewJWTService("another-secret", time.Hour), "member")

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing token", "", "Unauthorized"},
		{"malformed token", "Bearer invalid-token", "Unauthorized"},
		{"foreign signature", "Bearer " + otherRaw, "Unauthorized"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run")
			}))
			req := httptest.NewRequest("GET", "/api/v1/devices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestAuth_ExpiredSession(t *testing.T) {
	svc := auth.NewJWTService("test-secret", -time.Minute)
	raw, _ := issue(t, svc, "member")

	h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session expired")
}

func TestContextGetters_Empty(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, uuid.Nil, GetUserID(ctx))
	assert.Equal(t, uuid.Nil, GetOrganizationID(ctx))
	assert.Empty(t, GetUsername(ctx))
	assert.Empty(t, GetUserRole(ctx))
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)

	tests := []struct {
		role    string
		allowed []string
		want    int
	}{
		{"global_admin", []string{"global_admin"}, http.StatusOK},
		{"org_admin", []string{"global_admin", "org_admin"}, http.StatusOK},
		{"org_admin", []string{"global_admin"}, http.StatusForbidden},
		{"member", []string{"global_admin", "org_admin"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			raw, _ := issue(t, svc, tt.role)
			h := Auth(svc)(RequireRole(tt.allowed...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

			req := httptest.NewRequest("POST", "/api/v1/zones", nil)
			req.Header.Set("Authorization", "Bearer "+raw)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "Forbidden")
			}
		})
	}
}
