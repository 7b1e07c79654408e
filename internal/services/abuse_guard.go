package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/models"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
)

// AttemptStore defines the storage operations the abuse guard needs
type AttemptStore interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error)
	Get(ctx context.Context, key string) (int, error)
	GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error)
	SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error
	// SetBlockIfAbsent writes a block unless one is still active and reports whether it wrote
	SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error)
	Remove(ctx context.Context, key string) error
}

// FailureOutcome describes the effect of a single recorded failure
type FailureOutcome struct {
	Count        int
	Triggered    bool      // this failure created the block
	BlockedUntil time.Time // set when Triggered
}

// AbuseGuard counts failed logins per identity and blocks an identity once
// the policy threshold is reached. It never returns errors: store failures
// are logged and the guard fails open.
type AbuseGuard struct {
	store  AttemptStore
	policy LockoutPolicy
	clock  clock.Clock
	logger *slog.Logger
}

// NewAbuseGuard creates a new AbuseGuard
func NewAbuseGuard(store AttemptStore, policy LockoutPolicy, clk clock.Clock, logger *slog.Logger) *AbuseGuard {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &AbuseGuard{
		store:  store,
		policy: policy,
		clock:  clk,
		logger: logger,
	}
}

// NormalizeIdentity lower-cases and trims an identity; blank input yields ""
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Policy returns the policy the guard enforces
func (g *AbuseGuard) Policy() LockoutPolicy {
	return g.policy
}

// RecordFailure counts a failed attempt and returns the new failure count
func (g *AbuseGuard) RecordFailure(ctx context.Context, identity string) int {
	return g.RegisterFailure(ctx, identity).Count
}

// RegisterFailure counts a failed attempt and writes a block once the
// threshold is reached. An active block is never extended.
func (g *AbuseGuard) RegisterFailure(ctx context.Context, identity string) FailureOutcome {
	key := NormalizeIdentity(identity)
	if key == "" {
		return FailureOutcome{}
	}

	count, err := g.store.IncrementAndGet(ctx, key, g.policy.AttemptsTTL)
	if err != nil {
		g.logger.Error("failed to record login failure",
			slog.String("identity", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
		return FailureOutcome{}
	}

	outcome := FailureOutcome{Count: count}

	now := g.clock.Now()
	until, block := g.policy.Decide(count, now)
	if !block {
		return outcome
	}

	written, err := g.store.SetBlockIfAbsent(ctx, key, until, g.policy.BlockDuration)
	if err != nil {
		g.logger.Error("failed to write block",
			slog.String("identity", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
		return outcome
	}
	if !written {
		// Another failure already holds an active block
		return outcome
	}

	g.logger.Warn("identity blocked after repeated login failures",
		slog.String("identity", pkglogger.SanitizedEmail(key)),
		slog.Int("failed_attempts", count),
		slog.Duration("block_duration", g.policy.BlockDuration))

	outcome.Triggered = true
	outcome.BlockedUntil = until
	return outcome
}

// IsBlocked reports whether identity is blocked and for how much longer
func (g *AbuseGuard) IsBlocked(ctx context.Context, identity string) (bool, time.Duration) {
	key := NormalizeIdentity(identity)
	if key == "" {
		return false, 0
	}

	until, found, err := g.store.GetBlockUntil(ctx, key)
	if err != nil {
		g.logger.Error("failed to check block state",
			slog.String("identity", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
		return false, 0
	}
	if !found {
		return false, 0
	}

	now := g.clock.Now()
	if !until.After(now) {
		return false, 0
	}
	return true, until.Sub(now)
}

// Reset clears the failure counter and any block for identity
func (g *AbuseGuard) Reset(ctx context.Context, identity string) {
	key := NormalizeIdentity(identity)
	if key == "" {
		return
	}

	if err := g.store.Remove(ctx, key); err != nil {
		g.logger.Error("failed to reset guard state",
			slog.String("identity", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
	}
}

// GetAttempts returns the current failure count without modifying it
func (g *AbuseGuard) GetAttempts(ctx context.Context, identity string) int {
	key := NormalizeIdentity(identity)
	if key == "" {
		return 0
	}

	count, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Error("failed to read failure count",
			slog.String("identity", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
		return 0
	}
	return count
}

// Status combines GetAttempts and IsBlocked for operator tooling
func (g *AbuseGuard) Status(ctx context.Context, identity string) models.LockoutStatus {
	key := NormalizeIdentity(identity)
	blocked, remaining := g.IsBlocked(ctx, key)
	return models.LockoutStatus{
		Identity:       key,
		FailedAttempts: g.GetAttempts(ctx, key),
		Blocked:        blocked,
		Remaining:      remaining,
	}
}
