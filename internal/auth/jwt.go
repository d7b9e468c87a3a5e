package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "eco-energy"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is what a session token asserts. Role and OrganizationID are
// hints for clients; the API re-reads both from the database per request.
type Identity struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Username       string
	Role           string
}

type Claims struct {
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	OrganizationID uuid.UUID `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() uuid.UUID {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// JWTService signs and checks HS256 session tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

func (s *JWTService) Issue(id Identity) (string, error) {
	if id.UserID == uuid.Nil {
		return "", errors.New("issuing token: missing user id")
	}
	now := time.Now()
	claims := Claims{
		Username:       id.Username,
		Role:           id.Role,
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies the signature and time claims and returns the claims. A
// token whose subject is not a UUID is rejected.
func (s *JWTService) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	case claims.UserID() == uuid.Nil:
		return nil, ErrInvalidToken
	}
	return claims, nil
}
