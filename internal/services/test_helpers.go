package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc  func(userID, email string) (string, error)
	GenerateRefreshTokenFunc func(userID, email string) (string, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(userID, email string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, email)
	}
	return "access-" + userID, nil
}

func (m *MockTokenIssuer) GenerateRefreshToken(userID, email string) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(userID, email)
	}
	return "refresh-" + userID, nil
}

// MockAttemptStore implements AttemptStore for testing store failures
type MockAttemptStore struct {
	IncrementAndGetFunc  func(ctx context.Context, key string, ttl time.Duration) (int, error)
	GetFunc              func(ctx context.Context, key string) (int, error)
	GetBlockUntilFunc    func(ctx context.Context, key string) (time.Time, bool, error)
	SetBlockUntilFunc    func(ctx context.Context, key string, until time.Time, ttl time.Duration) error
	SetBlockIfAbsentFunc func(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error)
	RemoveFunc           func(ctx context.Context, key string) error
}

func (m *MockAttemptStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	if m.IncrementAndGetFunc != nil {
		return m.IncrementAndGetFunc(ctx, key, ttl)
	}
	return 1, nil
}

func (m *MockAttemptStore) Get(ctx context.Context, key string) (int, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return 0, nil
}

func (m *MockAttemptStore) GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error) {
	if m.GetBlockUntilFunc != nil {
		return m.GetBlockUntilFunc(ctx, key)
	}
	return time.Time{}, false, nil
}

func (m *MockAttemptStore) SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	if m.SetBlockUntilFunc != nil {
		return m.SetBlockUntilFunc(ctx, key, until, ttl)
	}
	return nil
}

func (m *MockAttemptStore) SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error) {
	if m.SetBlockIfAbsentFunc != nil {
		return m.SetBlockIfAbsentFunc(ctx, key, until, ttl)
	}
	return true, nil
}

func (m *MockAttemptStore) Remove(ctx context.Context, key string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, key)
	}
	return nil
}

// RecordingNotifier implements LockoutNotifier and records every notice
type RecordingNotifier struct {
	mu      sync.Mutex
	Notices []string
	Err     error
}

func (n *RecordingNotifier) NotifyLockout(ctx context.Context, email string, blockedUntil time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, email)
	return n.Err
}

// Sent returns a copy of the recorded recipients
func (n *RecordingNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Notices...)
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

// NewTestUser creates an active test user
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    "active",
		Role:      "customer",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword creates a user with hashed password
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithStatus creates a user with specified status
func NewTestUserWithStatus(id, email, name, status string) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	return user
}
