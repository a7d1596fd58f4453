// Package token signs and verifies the bearer session tokens handed out at login.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpireHours is the session lifetime used when the config leaves it unset.
const DefaultExpireHours = 7 * 24

var (
	// ErrSecretNotConfigured is returned by every operation when no signing secret is set.
	ErrSecretNotConfigured = errors.New("jwt secret not configured")
	// ErrInvalidToken covers bad signatures, malformed payloads and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// JWTManager mints and verifies HS256 tokens.
type JWTManager struct {
	secretKey []byte
	tokenDur  time.Duration
	now       func() time.Time
}

// CustomClaims is the payload carried by a session token.
type CustomClaims struct {
	UserID uint `json:"id"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a JWTManager. A non-positive expireHours falls back to seven days.
func NewJWTManager(secret string, expireHours int) *JWTManager {
	if expireHours <= 0 {
		expireHours = DefaultExpireHours
	}
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Duration(expireHours) * time.Hour,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Tests use it to step past expiry.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// Configured reports whether a signing secret is present.
func (m *JWTManager) Configured() bool {
	return len(m.secretKey) > 0
}

// GenerateToken mints a token whose subject is userID.
func (m *JWTManager) GenerateToken(userID uint) (string, error) {
	if !m.Configured() {
		return "", ErrSecretNotConfigured
	}
	now := m.now()
	claims := CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses tokenString and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	if !m.Configured() {
		return nil, ErrSecretNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		// only HMAC is ever issued
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
