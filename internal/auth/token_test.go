package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func TestTokenManager_AccessTokenRoundTrip(t *testing.T) {
	clk := clock.NewFake(time.Now())
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, 24*time.Hour, clk)

	token, err := tm.GenerateAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RefreshTokenType(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute, time.Hour, nil)

	token, err := tm.GenerateRefreshToken("user-1", "user@example.com")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeRefresh, claims.Type)
}

func TestTokenManager_UniqueJTI(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute, time.Hour, nil)

	first, err := tm.GenerateAccessToken("user-1", "user@example.com")
	require.NoError(t, err)
	second, err := tm.GenerateAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	c1, err := tm.ValidateToken(first)
	require.NoError(t, err)
	c2, err := tm.ValidateToken(second)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	clk := clock.NewFake(time.Now())
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, time.Hour, clk)

	token, err := tm.GenerateAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)

	_, err = tm.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer := auth.NewTokenManager(testSecret, time.Minute, time.Hour, nil)
	verifier := auth.NewTokenManager("another-secret-that-is-32-bytes-long!!", time.Minute, time.Hour, nil)

	token, err := issuer.GenerateAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}
