package auth_test

import (
	"testing"

	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*auth.Service, *testutil.TestSetup) {
	t.Helper()
	tc := testutil.NewTestContext(t)
	t.Cleanup(tc.Cleanup)
	return auth.NewService(tc.DB, tc.JWTService), tc
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, auth.CheckPassword("s3cret-pass", hash))
	assert.False(t, auth.CheckPassword("wrong-pass", hash))
}

func TestService_Login(t *testing.T) {
	svc, tc := newService(t)
	ctx := testutil.TestContext(t)

	t.Run("by username", func(t *testing.T) {
		resp, err := svc.Login(ctx, auth.LoginInput{Username: tc.User.Username, Password: testutil.TestPassword})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, tc.User.ID, resp.User.ID)

		claims, err := tc.JWTService.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, tc.User.ID, claims.UserID())
		assert.Equal(t, tc.User.Username, claims.Username)
		assert.Equal(t, tc.Org.ID, claims.OrganizationID)
		assert.Equal(t, models.RoleOrgAdmin, claims.Role)
	})

	t.Run("by email", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{Username: tc.User.Email, Password: testutil.TestPassword})
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{Username: tc.User.Username, Password: "nope-nope"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{Username: "ghost", Password: testutil.TestPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive user", func(t *testing.T) {
		require.NoError(t, svc.DeactivateUser(ctx, tc.Member.ID))
		_, err := svc.Login(ctx, auth.LoginInput{Username: tc.Member.Username, Password: testutil.TestPassword})
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
	})
}

func validCreateInput(orgID uuid.UUID) auth.CreateUserInput {
	return auth.CreateUserInput{
		Username:       "maria_lopez",
		Email:          "Maria@Example.com",
		Password:       "password123",
		FirstName:      "María",
		LastName:       "López",
		Role:           models.RoleMember,
		OrganizationID: orgID,
		Name:           "María López",
		Phone:          "987654321",
	}
}

func TestService_CreateUser(t *testing.T) {
	svc, tc := newService(t)
	ctx := testutil.TestContext(t)

	user, err := svc.CreateUser(ctx, validCreateInput(tc.Org.ID))
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)
	require.NotNil(t, user.Profile)
	assert.Equal(t, tc.Org.ID, user.Profile.OrganizationID)
	assert.True(t, user.IsActive)
	assert.True(t, auth.CheckPassword("password123", user.PasswordHash))

	tests := []struct {
		name   string
		mutate func(in *auth.CreateUserInput)
		want   error
	}{
		{"duplicate username", func(in *auth.CreateUserInput) {
			in.Email, in.Phone = "other@example.com", "911111111"
		}, auth.ErrUserExists},
		{"duplicate email", func(in *auth.CreateUserInput) {
			in.Username, in.Phone = "other_user", "911111111"
		}, auth.ErrEmailTaken},
		{"duplicate phone", func(in *auth.CreateUserInput) {
			in.Username, in.Email = "other_user", "other@example.com"
		}, auth.ErrPhoneTaken},
		{"unknown organization", func(in *auth.CreateUserInput) {
			in.Username, in.Email, in.Phone = "other_user", "other@example.com", "911111111"
			in.OrganizationID = uuid.New()
		}, auth.ErrOrganizationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput(tc.Org.ID)
			tt.mutate(&in)
			_, err := svc.CreateUser(ctx, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var profiles int64
	require.NoError(t, tc.DB.Model(&models.Profile{}).Where("phone = ?", "911111111").Count(&profiles).Error)
	assert.Zero(t, profiles, "failed creates must not leave profiles behind")
}

func TestService_UpdateUser(t *testing.T) {
	svc, tc := newService(t)
	ctx := testutil.TestContext(t)

	other := testutil.CreateTestOrg(t, tc.DB)
	inactive := false

	updated, err := svc.UpdateUser(ctx, tc.Member.ID, auth.UpdateUserInput{
		Email:          tc.Member.Email,
		Role:           models.RoleOrgAdmin,
		OrganizationID: other.ID,
		Name:           "Nuevo Nombre",
		Phone:          "955555555",
		IsActive:       &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrgAdmin, updated.Role)
	assert.False(t, updated.IsActive)
	assert.Equal(t, other.ID, updated.Profile.OrganizationID)
	assert.Equal(t, "955555555", updated.Profile.Phone)

	_, err = svc.UpdateUser(ctx, tc.Member.ID, auth.UpdateUserInput{
		Email:          tc.User.Email,
		Role:           models.RoleMember,
		OrganizationID: other.ID,
		Name:           "Nuevo Nombre",
		Phone:          "955555555",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = svc.UpdateUser(ctx, uuid.New(), auth.UpdateUserInput{})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, tc := newService(t)
	ctx := testutil.TestContext(t)

	t.Run("changes details without password", func(t *testing.T) {
		user, err := svc.UpdateProfile(ctx, tc.User.ID, auth.ProfileInput{
			Name:  "Ana Pérez",
			Phone: "944444444",
			Email: "ana@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana Pérez", user.Profile.Name)
		assert.Equal(t, "ana@example.com", user.Email)
		assert.Equal(t, tc.Org.ID, user.Profile.OrganizationID)
	})

	t.Run("password change requires current password", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, tc.User.ID, auth.ProfileInput{
			Name:            "Ana Pérez",
			Phone:           "944444444",
			CurrentPassword: "wrong-password",
			NewPassword:     "brand-new-pass",
		})
		assert.ErrorIs(t, err, auth.ErrWrongPassword)

		user, err := svc.UpdateProfile(ctx, tc.User.ID, auth.ProfileInput{
			Name:            "Ana Pérez",
			Phone:           "944444444",
			CurrentPassword: testutil.TestPassword,
			NewPassword:     "brand-new-pass",
		})
		require.NoError(t, err)
		assert.True(t, auth.CheckPassword("brand-new-pass", user.PasswordHash))
	})

	t.Run("phone taken by someone else", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, tc.User.ID, auth.ProfileInput{
			Name:  "Ana Pérez",
			Phone: tc.Member.Profile.Phone,
		})
		assert.ErrorIs(t, err, auth.ErrPhoneTaken)
	})
}

func TestService_DeactivateUser(t *testing.T) {
	svc, tc := newService(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, svc.DeactivateUser(ctx, tc.Member.ID))

	user, err := svc.GetUserByID(ctx, tc.Member.ID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	assert.ErrorIs(t, svc.DeactivateUser(ctx, uuid.New()), auth.ErrUserNotFound)
}
