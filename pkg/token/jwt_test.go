package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)

	signed, err := m.GenerateToken(42)
	require.NoError(t, err)

	claims, err := m.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
}

func TestDefaultLifetimeIsSevenDays(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewJWTManager("secret", 0).WithClock(func() time.Time { return now })

	signed, err := m.GenerateToken(1)
	require.NoError(t, err)
	claims, err := m.VerifyToken(signed)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(now.Add(7*24*time.Hour)))
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Now()
	m := NewJWTManager("secret", 1).WithClock(func() time.Time { return now })
	signed, err := m.GenerateToken(1)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = m.VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewJWTManager("one", 1).GenerateToken(1)
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1).VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{UserID: 1})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager("secret", 1).VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFailsClosedWithoutSecret(t *testing.T) {
	m := NewJWTManager("", 1)
	assert.False(t, m.Configured())

	_, err := m.GenerateToken(1)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)

	_, err = m.VerifyToken("anything")
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager("secret", 1).VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
