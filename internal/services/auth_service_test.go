package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/shopguard/internal/cache"
	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/models"
	pkgauth "github.com/BradenHooton/shopguard/pkg/auth"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "CorrectHorse9!"

type authFixture struct {
	service  *AuthService
	guard    *AbuseGuard
	clock    *clock.Fake
	notifier *RecordingNotifier
	repo     *MockUserRepository
}

func newAuthFixture(t *testing.T, users ...*models.User) *authFixture {
	t.Helper()

	hash, err := pkgauth.HashPasswordWithCost(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	byEmail := make(map[string]*models.User, len(users))
	for _, u := range users {
		if u.PasswordHash == "" {
			u.PasswordHash = hash
		}
		byEmail[u.Email] = u
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	guard := NewAbuseGuard(cache.NewMemoryStore(clk), DefaultLockoutPolicy(), clk, logger)
	notifier := &RecordingNotifier{}
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if u, ok := byEmail[email]; ok {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
	}

	return &authFixture{
		service:  NewAuthService(repo, &MockTokenIssuer{}, guard, notifier, nil, logger, pkglogger.NewAuditLogger(logger)),
		guard:    guard,
		clock:    clk,
		notifier: notifier,
		repo:     repo,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	ctx := context.Background()

	resp, err := f.service.Login(ctx, "User@Example.com", testPassword, LoginMetadata{IPAddress: "203.0.113.9"})

	require.NoError(t, err)
	assert.Equal(t, "access-user123", resp.AccessToken)
	assert.Equal(t, "refresh-user123", resp.RefreshToken)
	assert.Equal(t, "user@example.com", resp.User.Email)
}

func TestAuthService_Login_SuccessResetsFailures(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
		require.Error(t, err)
	}
	require.Equal(t, 3, f.guard.GetAttempts(ctx, "user@example.com"))

	_, err := f.service.Login(ctx, "user@example.com", testPassword, LoginMetadata{})
	require.NoError(t, err)

	assert.Equal(t, 0, f.guard.GetAttempts(ctx, "user@example.com"))
}

func TestAuthService_Login_InvalidPasswordReportsRemaining(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	ctx := context.Background()

	_, err := f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
	require.ErrorIs(t, err, models.ErrUnauthorized)

	var credErr *CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.True(t, credErr.Counted)
	assert.Equal(t, 4, credErr.AttemptsRemaining)

	_, err = f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, 3, credErr.AttemptsRemaining)
}

func TestAuthService_Login_LocksAfterThreshold(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
		require.ErrorIs(t, err, models.ErrUnauthorized)
	}

	assert.Equal(t, []string{"user@example.com"}, f.notifier.Sent())

	// Correct password is rejected while blocked
	f.clock.Advance(time.Minute)
	_, err := f.service.Login(ctx, "user@example.com", testPassword, LoginMetadata{})
	require.ErrorIs(t, err, models.ErrAccountLockedBySystem)

	var lockedErr *AccountLockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, 14*time.Minute, lockedErr.RetryAfter)

	// Block lapses on its own
	f.clock.Advance(15 * time.Minute)
	_, err = f.service.Login(ctx, "user@example.com", testPassword, LoginMetadata{})
	assert.NoError(t, err)
}

func TestAuthService_Login_BlockedAttemptsAreNotCounted(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
	}
	for i := 0; i < 3; i++ {
		_, err := f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
		require.ErrorIs(t, err, models.ErrAccountLockedBySystem)
	}

	assert.Equal(t, 5, f.guard.GetAttempts(ctx, "user@example.com"))
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestAuthService_Login_UnknownEmailCountsTowardBlock(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.Login(ctx, "ghost@example.com", "whatever", LoginMetadata{})
		require.ErrorIs(t, err, models.ErrUnauthorized)
	}

	blocked, _ := f.guard.IsBlocked(ctx, "ghost@example.com")
	assert.True(t, blocked)
	assert.Empty(t, f.notifier.Sent())
}

func TestAuthService_Login_NotifierErrorIgnored(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	f.notifier.Err = errors.New("ses throttled")
	ctx := context.Background()

	var err error
	for i := 0; i < 5; i++ {
		_, err = f.service.Login(ctx, "user@example.com", "wrong", LoginMetadata{})
	}

	var credErr *CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, 0, credErr.AttemptsRemaining)

	blocked, _ := f.guard.IsBlocked(ctx, "user@example.com")
	assert.True(t, blocked)
}

func TestAuthService_Login_DisabledAccount(t *testing.T) {
	f := newAuthFixture(t, NewTestUserWithStatus("user123", "user@example.com", "Jane", "disabled"))

	_, err := f.service.Login(context.Background(), "user@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrAccountDisabled)
}

func TestAuthService_Login_EmptyEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), "   ", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Login_RepositoryErrorDoesNotCount(t *testing.T) {
	f := newAuthFixture(t)
	f.repo.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return nil, errors.New("connection reset")
	}
	ctx := context.Background()

	_, err := f.service.Login(ctx, "user@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, 0, f.guard.GetAttempts(ctx, "user@example.com"))
}

func TestAuthService_Login_StoreOutageOmitsRemaining(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	store := &MockAttemptStore{
		IncrementAndGetFunc: func(ctx context.Context, key string, ttl time.Duration) (int, error) {
			return 0, errors.New("connection refused")
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service.guard = NewAbuseGuard(store, DefaultLockoutPolicy(), f.clock, logger)

	_, err := f.service.Login(context.Background(), "user@example.com", "wrong", LoginMetadata{})
	require.ErrorIs(t, err, models.ErrUnauthorized)

	var credErr *CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.False(t, credErr.Counted)
	assert.Zero(t, credErr.AttemptsRemaining)
	assert.Empty(t, f.notifier.Sent())
}

func TestAuthService_Login_TokenFailure(t *testing.T) {
	f := newAuthFixture(t, NewTestUser("user123", "user@example.com", "Jane"))
	f.service.tokens = &MockTokenIssuer{
		GenerateAccessTokenFunc: func(userID, email string) (string, error) {
			return "", errors.New("signing failed")
		},
	}

	_, err := f.service.Login(context.Background(), "user@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestAccountLockedError(t *testing.T) {
	err := error(&AccountLockedError{RetryAfter: 90 * time.Second})

	assert.ErrorIs(t, err, models.ErrAccountLockedBySystem)
	assert.Contains(t, err.Error(), "1m30s")
}

func TestValidateAccountState(t *testing.T) {
	tests := []struct {
		status  string
		wantErr error
	}{
		{"active", nil},
		{"disabled", models.ErrAccountDisabled},
		{"suspended", models.ErrAccountSuspended},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			err := validateAccountState(NewTestUserWithStatus("u", "u@example.com", "U", tt.status))
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Error(t, validateAccountState(NewTestUserWithStatus("u", "u@example.com", "U", "archived")))
}
