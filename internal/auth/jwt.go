package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceAudience = "banking-core"

type Claims struct {
	Service string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Service string `json:"svc"`
}

// GenerateServiceToken signs a short-lived token identifying the calling
// service. Tokens are only accepted by services sharing the secret.
func GenerateServiceToken(service string, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   service,
			Audience:  jwt.ClaimStrings{serviceAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Service: service,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateServiceToken: %w", err)
	}
	return signed, nil
}

func ValidateServiceToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience(serviceAudience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("ValidateServiceToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateServiceToken: invalid token claims")
	}
	if tc.Service == "" {
		return nil, fmt.Errorf("ValidateServiceToken: missing service claim")
	}

	return &Claims{Service: tc.Service}, nil
}
