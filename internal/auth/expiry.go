package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expired reports whether a JWT bearer token carries an exp claim in the past.
// The signature is not checked; the backend remains the authority. Opaque
// (non-JWT) tokens and tokens without exp are never considered expired.
func Expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
