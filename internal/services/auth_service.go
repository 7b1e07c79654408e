package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/BradenHooton/shopguard/internal/models"
	pkgauth "github.com/BradenHooton/shopguard/pkg/auth"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
)

// UserRepository defines the user lookups the login flow needs
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer issues the token pair returned on a successful login
type TokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, error)
	GenerateRefreshToken(userID, email string) (string, error)
}

// LoginGuard is the abuse guard as seen by the login flow
type LoginGuard interface {
	IsBlocked(ctx context.Context, identity string) (bool, time.Duration)
	RegisterFailure(ctx context.Context, identity string) FailureOutcome
	Reset(ctx context.Context, identity string)
	Policy() LockoutPolicy
}

// AccountLockedError is returned while an identity is blocked
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", models.ErrAccountLockedBySystem, e.RetryAfter.Round(time.Second))
}

func (e *AccountLockedError) Unwrap() error {
	return models.ErrAccountLockedBySystem
}

// CredentialsError is returned for a wrong email/password combination
type CredentialsError struct {
	AttemptsRemaining int
	Counted           bool // false when the guard could not record the failure
}

func (e *CredentialsError) Error() string {
	return models.ErrUnauthorized.Error()
}

func (e *CredentialsError) Unwrap() error {
	return models.ErrUnauthorized
}

// LoginMetadata carries request details recorded in audit events
type LoginMetadata struct {
	IPAddress string
	UserAgent string
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tokens      TokenIssuer
	guard       LoginGuard
	notifier    LockoutNotifier
	timingDelay *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tokens TokenIssuer, guard LoginGuard, notifier LockoutNotifier, timingDelay *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	if notifier == nil {
		notifier = NoopLockoutNotifier{}
	}
	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		guard:       guard,
		notifier:    notifier,
		timingDelay: timingDelay,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// Login authenticates a user and returns tokens.
// Blocked identities are rejected before any credential check.
func (s *AuthService) Login(ctx context.Context, email, password string, meta LoginMetadata) (*AuthResponse, error) {
	start := time.Now()

	email = NormalizeIdentity(email)
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	if blocked, remaining := s.guard.IsBlocked(ctx, email); blocked {
		s.logger.Info("login rejected: identity blocked",
			slog.String("identity", pkglogger.SanitizedEmail(email)),
			slog.Duration("retry_after", remaining))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Identity:      email,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: "identity_blocked",
		})
		s.timingDelay.WaitFrom(start, false)
		return nil, &AccountLockedError{RetryAfter: remaining}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown emails still burn a bcrypt comparison and count as failures
			_ = pkgauth.CompareDummy(password)
			return nil, s.failLogin(ctx, start, email, nil, meta)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failLogin(ctx, start, email, user, meta)
	}

	// Credentials are valid: the failure history no longer applies
	s.guard.Reset(ctx, email)

	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: "account_" + user.Status,
		})
		return nil, err
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	s.timingDelay.WaitFrom(start, true)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// failLogin records a failure with the guard and builds the credentials error.
// user is nil when the email is unknown.
func (s *AuthService) failLogin(ctx context.Context, start time.Time, email string, user *models.User, meta LoginMetadata) error {
	outcome := s.guard.RegisterFailure(ctx, email)

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		Identity:      email,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		FailureReason: "invalid_credentials",
		Metadata:      map[string]string{"failed_attempts": strconv.Itoa(outcome.Count)},
	}
	if user != nil {
		event.UserID = user.ID
	}
	s.logger.Info("login failed: invalid credentials")
	s.auditLogger.LogAuthAttempt(event)

	if outcome.Triggered {
		event.EventType = "lockout_triggered"
		event.FailureReason = "failure_threshold_reached"
		event.Metadata["blocked_until"] = outcome.BlockedUntil.UTC().Format(time.RFC3339)
		s.auditLogger.LogLockout(event)

		// Only real accounts get a notice
		if user != nil {
			if err := s.notifier.NotifyLockout(ctx, user.Email, outcome.BlockedUntil); err != nil {
				s.logger.Warn("failed to send lockout notice",
					slog.String("user_id", user.ID),
					slog.Any("error", err))
			}
		}
	}

	s.timingDelay.WaitFrom(start, false)

	if outcome.Count == 0 {
		return &CredentialsError{}
	}
	return &CredentialsError{
		AttemptsRemaining: s.guard.Policy().Remaining(outcome.Count),
		Counted:           true,
	}
}

// validateAccountState checks if user account is in valid state for authentication
func validateAccountState(user *models.User) error {
	switch user.Status {
	case "active":
		return nil
	case "disabled":
		return models.ErrAccountDisabled
	case "suspended":
		return models.ErrAccountSuspended
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
