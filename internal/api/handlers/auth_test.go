package handlers_test

import (
	"net/http"
	"testing"

	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/handlers"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	authService := auth.NewService(tc.DB, tc.JWTService)
	csrf := middleware.NewCSRFGuard("test-secret")
	handler := handlers.NewAuthHandler(authService, csrf, testLogger())

	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", handler.Login)
	r.Post("/api/v1/auth/logout", handler.Logout)
	r.With(middleware.Auth(tc.JWTService)).Get("/api/v1/auth/csrf", handler.CSRFToken)

	return r, tc
}

func TestAuthHandler_Login(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	t.Run("by username", func(t *testing.T) {
		body := map[string]string{"username": tc.User.Username, "password": testutil.TestPassword}
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, tc.User.ID.String(), resp.User.ID)
		assert.Equal(t, models.RoleOrgAdmin, resp.User.Role)
		assert.Equal(t, tc.Org.ID.String(), resp.User.OrganizationID)
		assert.Equal(t, tc.Org.Name, resp.User.OrgName)

		var tokenCookie *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == "token" {
				tokenCookie = c
			}
		}
		require.NotNil(t, tokenCookie)
		assert.True(t, tokenCookie.HttpOnly)
		assert.Equal(t, resp.Token, tokenCookie.Value)
	})

	t.Run("by email", func(t *testing.T) {
		body := map[string]string{"username": tc.Member.Email, "password": testutil.TestPassword}
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, tc.Member.ID.String(), resp.User.ID)
		assert.Equal(t, models.RoleMember, resp.User.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{"username": tc.User.Username, "password": "wrongpassword"}
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid credentials")
	})

	t.Run("unknown user", func(t *testing.T) {
		body := map[string]string{"username": "nobody_here", "password": testutil.TestPassword}
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("inactive user", func(t *testing.T) {
		user := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)
		require.NoError(t, tc.DB.Model(user).Update("is_active", false).Error)

		body := map[string]string{"username": user.Username, "password": testutil.TestPassword}
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", map[string]string{}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "username")
		assert.Contains(t, resp.Details, "password")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", nil)
		rr := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthHandler_CSRFToken(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	t.Run("cookie session gets a token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/auth/csrf", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: tc.Token})
		rr := serve(router, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp handlers.CSRFTokenResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)

		// Same session, same token.
		rr2 := serve(router, req)
		var again handlers.CSRFTokenResponse
		testutil.ParseJSONResponse(t, rr2, &again)
		assert.Equal(t, resp.Token, again.Token)
	})

	t.Run("header auth has no session", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/auth/csrf", nil, tc.Token))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp handlers.CSRFTokenResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Empty(t, resp.Token)
	})
}
