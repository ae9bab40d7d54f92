package service

import (
	"testing"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func newTestTokenService(secret string, expiry time.Duration) *JWTTokenService {
	return NewJWTTokenService(config.JWTConfig{Secret: secret, Expiry: expiry, Issuer: "test-issuer"})
}

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := newTestTokenService(testJWTSecret, 24*time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer}

	tokenStr, expiresAt, err := svc.Generate(actor)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	got, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, actor, *got)
}

func TestJWTTokenService_SystemActor(t *testing.T) {
	svc := newTestTokenService(testJWTSecret, time.Hour)

	tokenStr, _, err := svc.Generate(domain.SystemActor)
	require.NoError(t, err)

	got, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.True(t, got.IsStaff())
	assert.Equal(t, domain.RoleSystem, got.Role)
}

func TestJWTTokenService_RejectsBadActors(t *testing.T) {
	svc := newTestTokenService(testJWTSecret, time.Hour)

	_, _, err := svc.Generate(domain.Actor{Role: domain.RoleAdmin})
	assert.Error(t, err, "admin without user id")

	_, _, err = svc.Generate(domain.Actor{UserID: uuid.New(), Role: "ROOT"})
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := newTestTokenService(testJWTSecret, -1*time.Hour)

	tokenStr, _, err := svc.Generate(domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := newTestTokenService("secret-1", 24*time.Hour)
	svc2 := newTestTokenService("secret-2", 24*time.Hour)

	tokenStr, _, err := svc1.Generate(domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	other := NewJWTTokenService(config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour, Issuer: "someone-else"})
	tokenStr, _, err := other.Generate(domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = newTestTokenService(testJWTSecret, time.Hour).Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsUnknownRole(t *testing.T) {
	claims := actorClaims{
		Role: "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = newTestTokenService(testJWTSecret, time.Hour).Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := newTestTokenService(testJWTSecret, 24*time.Hour)

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
