//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/BradenHooton/shopguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginLockoutFlow(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts := NewTestServer(testDB.DB, services.DefaultLockoutPolicy())
	defer ts.Close()

	email, password := TestUser("lockout")
	_, err := SeedUser(ctx, testDB.DB, email, password)
	require.NoError(t, err)

	for remaining := 4; remaining >= 0; remaining-- {
		resp, err := ts.Login(email, "wrong-password")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		errResp, err := GetErrorResponse(resp)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("attempts_remaining=%d", remaining), errResp.Details)
	}

	notices := ts.Notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, email, notices[0].Email)
	assert.Equal(t, Epoch.Add(15*time.Minute), notices[0].BlockedUntil.UTC())

	// Correct password is rejected while blocked
	resp, err := ts.Login(email, password)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "900", resp.Header.Get("Retry-After"))
	resp.Body.Close()

	ts.Clock.Advance(16 * time.Minute)

	resp, err = ts.Login(email, password)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body services.AuthResponse
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, email, body.User.Email)

	assert.Equal(t, 0, ts.Guard.GetAttempts(ctx, email))
}

func TestAdminLockoutEndpoints(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts := NewTestServer(testDB.DB, services.LockoutPolicy{
		Threshold:     2,
		BlockDuration: 10 * time.Minute,
		AttemptsTTL:   10 * time.Minute,
	})
	defer ts.Close()

	email, password := TestUser("admin")
	_, err := SeedUser(ctx, testDB.DB, email, password)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := ts.Login(email, "wrong-password")
		require.NoError(t, err)
		resp.Body.Close()
	}

	path := "/admin/lockouts/" + url.PathEscape(email)

	resp, err := ts.Request(http.MethodGet, path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.AdminRequest(http.MethodGet, path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Email             string `json:"email"`
		FailedAttempts    int    `json:"failed_attempts"`
		Blocked           bool   `json:"blocked"`
		RetryAfterSeconds int    `json:"retry_after_seconds"`
	}
	require.NoError(t, ParseJSONResponse(resp, &status))
	assert.Equal(t, email, status.Email)
	assert.Equal(t, 2, status.FailedAttempts)
	assert.True(t, status.Blocked)
	assert.Equal(t, 600, status.RetryAfterSeconds)

	resp, err = ts.AdminRequest(http.MethodDelete, path)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.Login(email, password)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthReportsPostgres(t *testing.T) {
	ts := NewTestServer(testDB.DB, services.DefaultLockoutPolicy())
	defer ts.Close()

	resp, err := ts.Request(http.MethodGet, "/health", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "postgres", body["store"])
}
