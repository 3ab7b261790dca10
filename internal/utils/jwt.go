// internal/utils/jwt.go
package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// JWTClaims are issued by the platform auth service. This service only
// verifies them.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var (
	jwtSecret = []byte("your-secret-key-change-in-production")
	jwtIssuer = "nutriforum-auth"
)

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func SetJWTIssuer(issuer string) {
	jwtIssuer = issuer
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyIssuer(jwtIssuer, true) {
		return nil, errors.New("unexpected token issuer")
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, errors.New("invalid user id in token")
	}

	return claims, nil
}
