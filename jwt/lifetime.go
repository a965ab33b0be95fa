package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RemainingLifetime reads the exp claim of a JWT without verifying its
// signature and returns the time left until now. ok is false for opaque
// tokens, tokens without exp, and tokens that already expired.
//
// The result only sizes cache and blacklist entries. Never use it to make
// an authorization decision.
func RemainingLifetime(token string, now time.Time) (time.Duration, bool) {
	if token == "" {
		return 0, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, false
	}
	if claims.ExpiresAt == nil {
		return 0, false
	}
	left := claims.ExpiresAt.Time.Sub(now)
	if left <= 0 {
		return 0, false
	}
	return left, true
}
