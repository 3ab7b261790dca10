package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nutriforum/pricing-backend/internal/utils"
)

// Token signs a bearer token the way the platform auth service issues them.
func Token(t testing.TB, secret, issuer string, userID uuid.UUID, role string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := utils.JWTClaims{
		UserID:   userID.String(),
		Username: role + "-account",
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
