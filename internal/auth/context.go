// Package auth carries the customer's bearer token from the mobile shell to
// backend calls.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type ctxKey string

const tokenKey ctxKey = "chefbook.bearer_token"

// WithToken stores the bearer token in context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext extracts the bearer token if present.
func TokenFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return "", false
	}
	token, ok := val.(string)
	return token, ok && token != ""
}

// OwnerKey identifies the caller holding the bearer token in ctx, for scoping
// per-customer sessions. It is a digest of the whole token, so a forged token
// cannot claim another customer's sessions.
func OwnerKey(ctx context.Context) (string, bool) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return "", false
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16]), true
}
