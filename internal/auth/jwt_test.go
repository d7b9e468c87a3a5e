package auth_test

import (
	"testing"
	"time"

	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() auth.Identity {
	return auth.Identity{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Username:       "plant_manager",
		Role:           "org_admin",
	}
}

func TestJWTService_IssueAndParse(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)
	id := testIdentity()

	raw, err := svc.Issue(id)
	require.NoError(t, err)

	claims, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, claims.UserID())
	assert.Equal(t, id.OrganizationID, claims.OrganizationID)
	assert.Equal(t, id.Username, claims.Username)
	assert.Equal(t, id.Role, claims.Role)
	assert.Equal(t, "eco-energy", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	again, err := svc.Issue(id)
	require.NoError(t, err)
	assert.NotEqual(t, raw, again, "each token gets its own jti")
}

func TestJWTService_IssueRequiresUser(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)
	_, err := svc.Issue(auth.Identity{Username: "nobody"})
	assert.Error(t, err)
}

func TestJWTService_ParseRejects(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)
	id := testIdentity()

	sign := func(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return raw
	}
	valid := func() auth.Claims {
		now := time.Now()
		return auth.Claims{
			Username: id.Username,
			Role:     id.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id.UserID.String(),
				Issuer:    "eco-energy",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	foreignIssuer := valid()
	foreignIssuer.Issuer = "someone-else"

	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	badSubject := valid()
	badSubject.Subject = "admin"

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"garbage", "not.a.token", auth.ErrInvalidToken},
		{"empty", "", auth.ErrInvalidToken},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte("test-secret"), expired), auth.ErrExpiredToken},
		{"other secret", sign(t, jwt.SigningMethodHS256, []byte("other-secret"), valid()), auth.ErrInvalidToken},
		{"other algorithm", sign(t, jwt.SigningMethodHS512, []byte("test-secret"), valid()), auth.ErrInvalidToken},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid()), auth.ErrInvalidToken},
		{"foreign issuer", sign(t, jwt.SigningMethodHS256, []byte("test-secret"), foreignIssuer), auth.ErrInvalidToken},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte("test-secret"), noExpiry), auth.ErrInvalidToken},
		{"subject not a uuid", sign(t, jwt.SigningMethodHS256, []byte("test-secret"), badSubject), auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Parse(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTService_RolesRoundTrip(t *testing.T) {
	svc := auth.NewJWTService("test-secret", time.Hour)

	for _, role := range []string{"global_admin", "org_admin", "member"} {
		t.Run(role, func(t *testing.T) {
			id := testIdentity()
			id.Role = role
			raw, err := svc.Issue(id)
			require.NoError(t, err)

			claims, err := svc.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, role, claims.Role)
		})
	}
}
