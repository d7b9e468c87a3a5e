package handlers_test

import (
	"net/http"
	"testing"

	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/handlers"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMeTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewMeHandler(auth.NewService(tc.DB, tc.JWTService), testLogger())

	r := protectedRouter(tc)
	r.Get("/api/v1/me", handler.Get)
	r.Put("/api/v1/me", handler.Update)

	return r, tc
}

func TestMeHandler_Get(t *testing.T) {
	router, tc := setupMeTestRouter(t)
	defer tc.Cleanup()

	rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, tc.MemberToken))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.UserDTO
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, tc.Member.ID.String(), resp.ID)
	assert.Equal(t, tc.Org.Name, resp.OrgName)

	rr = serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeHandler_Update(t *testing.T) {
	router, tc := setupMeTestRouter(t)
	defer tc.Cleanup()

	t.Run("profile fields", func(t *testing.T) {
		body := map[string]string{"name": "María Núñez", "phone": "611-222-333"}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/v1/me", body, tc.MemberToken))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "María Núñez", resp.Name)
		assert.Equal(t, "611222333", resp.Phone)
		assert.Equal(t, tc.Member.Email, resp.Email)
	})

	t.Run("password change needs current password", func(t *testing.T) {
		body := map[string]string{
			"name":                  "Maria",
			"phone":                 "611222333",
			"current_password":      "not-my-password",
			"new_password":          "brandnewpass1",
			"password_confirmation": "brandnewpass1",
		}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/v1/me", body, tc.MemberToken))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "current_password")
	})

	t.Run("password change", func(t *testing.T) {
		body := map[string]string{
			"name":                  "Maria",
			"phone":                 "611222333",
			"current_password":      testutil.TestPassword,
			"new_password":          "brandnewpass1",
			"password_confirmation": "brandnewpass1",
		}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/v1/me", body, tc.MemberToken))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		_, err := auth.NewService(tc.DB, tc.JWTService).Login(testutil.TestContext(t), auth.LoginInput{
			Username: tc.Member.Username,
			Password: "brandnewpass1",
		})
		assert.NoError(t, err)
	})

	t.Run("phone of another user", func(t *testing.T) {
		body := map[string]string{"name": "Maria", "phone": tc.User.Profile.Phone}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/v1/me", body, tc.MemberToken))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid phone", func(t *testing.T) {
		body := map[string]string{"name": "Maria", "phone": "12345"}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/v1/me", body, tc.MemberToken))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
