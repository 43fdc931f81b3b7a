package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "customer-1"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestTokenContextRoundTrip(t *testing.T) {
	_, ok := TokenFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TokenFromContext(WithToken(context.Background(), ""))
	assert.False(t, ok)

	token, ok := TokenFromContext(WithToken(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.True(t, Expired(signed(t, &past), now))
	assert.False(t, Expired(signed(t, &future), now))
	assert.False(t, Expired(signed(t, nil), now))
	assert.False(t, Expired("opaque-session-token", now))
}

func TestOwnerKey(t *testing.T) {
	_, ok := OwnerKey(context.Background())
	assert.False(t, ok)

	alice, ok := OwnerKey(WithToken(context.Background(), "alice-token"))
	require.True(t, ok)
	again, _ := OwnerKey(WithToken(context.Background(), "alice-token"))
	bob, _ := OwnerKey(WithToken(context.Background(), "bob-token"))

	assert.Equal(t, alice, again)
	assert.NotEqual(t, alice, bob)
	assert.NotContains(t, alice, "alice-token")
}
