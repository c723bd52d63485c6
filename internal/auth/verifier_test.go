package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/server/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyUserIDClaimTakesPrecedence(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "claim-id",
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "claim-id", userID)
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "subject-id",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-id", userID)
}

func TestVerifyMissingToken(t *testing.T) {
	v := NewVerifier(testSecret, "")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Verify("   ")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, "other-secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	v := NewVerifier(testSecret, "chatmesh")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyGarbageToken(t *testing.T) {
	v := NewVerifier(testSecret, "")
	_, err := v.Verify("not.a.jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyTokenWithoutPrincipal(t *testing.T) {
	v := NewVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
