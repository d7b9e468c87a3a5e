package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecoenergy/eco-energy/internal/api"
	"github.com/ecoenergy/eco-energy/internal/api/handlers"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/ecoenergy/eco-energy/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*api.Router, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)
	router := api.NewRouter(api.RouterConfig{
		DB:          tc.DB,
		Logger:      util.NewLoggerTo(io.Discard, "test"),
		JWTService:  tc.JWTService,
		AuthService: auth.NewService(tc.DB, tc.JWTService),
	})
	t.Cleanup(router.Close)
	return router, tc
}

func TestRouter_PublicAndProtected(t *testing.T) {
	router, tc := newTestRouter(t)
	defer tc.Cleanup()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.UnauthenticatedRequest(t, "GET", "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, tc.MemberToken))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RoleGates(t *testing.T) {
	router, tc := newTestRouter(t)
	defer tc.Cleanup()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"member cannot create zones", "POST", "/api/v1/zones", tc.MemberToken, http.StatusForbidden},
		{"org admin cannot create products", "POST", "/api/v1/products", tc.Token, http.StatusForbidden},
		{"org admin cannot write alert rules", "POST", "/api/v1/alert-rules", tc.Token, http.StatusForbidden},
		{"member cannot list users", "GET", "/api/v1/users", tc.MemberToken, http.StatusForbidden},
		{"member reads alert rules", "GET", "/api/v1/alert-rules", tc.MemberToken, http.StatusOK},
		{"org admin lists users", "GET", "/api/v1/users", tc.Token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, tt.method, tt.path, map[string]string{}, tt.token))
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestRouter_CSRFForCookieSessions(t *testing.T) {
	router, tc := newTestRouter(t)
	defer tc.Cleanup()

	cookie := &http.Cookie{Name: "token", Value: tc.Token}

	req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/zones", map[string]string{})
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "CSRF token missing")

	req = testutil.UnauthenticatedRequest(t, "GET", "/api/v1/auth/csrf", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var csrf handlers.CSRFTokenResponse
	testutil.ParseJSONResponse(t, rr, &csrf)
	require.NotEmpty(t, csrf.Token)

	req = testutil.UnauthenticatedRequest(t, "POST", "/api/v1/zones", map[string]string{})
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", csrf.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
}
