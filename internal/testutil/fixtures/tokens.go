package fixtures

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevin07696/slot-billing/internal/domain"
)

// JWTSecret is the HS256 key used by handler and middleware tests
const JWTSecret = "test-session-secret"

// SessionToken signs an HS256 session token for actor that expires after ttl
func SessionToken(secret string, actor domain.Actor, ttl time.Duration) string {
	now := time.Now()
	claims := domain.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      actor.Role,
		CompanyID: actor.CompanyID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}
