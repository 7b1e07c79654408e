package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/database"
	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps guard state in the abuse_guard_entries table.
// Increments run as a single INSERT ... ON CONFLICT statement, so the row lock
// serializes concurrent callers for the same identity.
type PostgresStore struct {
	db    *database.DB
	clock clock.Clock
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *database.DB, clk clock.Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clk}
}

// IncrementAndGet atomically bumps the failure counter and refreshes its TTL
func (s *PostgresStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	query := `
		INSERT INTO abuse_guard_entries (identity, failure_count, count_recorded_at, count_expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
			failure_count = CASE
				WHEN abuse_guard_entries.count_expires_at IS NULL OR abuse_guard_entries.count_expires_at < $2 THEN 1
				ELSE abuse_guard_entries.failure_count + 1
			END,
			count_recorded_at = EXCLUDED.count_recorded_at,
			count_expires_at = EXCLUDED.count_expires_at
		RETURNING failure_count
	`

	now := s.clock.Now().UTC()

	var count int
	if err := s.db.Pool.QueryRow(ctx, query, key, now, now.Add(ttl)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	return count, nil
}

// Get returns the live failure count without touching its TTL
func (s *PostgresStore) Get(ctx context.Context, key string) (int, error) {
	query := `
		SELECT failure_count FROM abuse_guard_entries
		WHERE identity = $1 AND count_expires_at >= $2
	`

	var count int
	err := s.db.Pool.QueryRow(ctx, query, key, s.clock.Now().UTC()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read attempt counter: %w", err)
	}
	return count, nil
}

// GetBlockUntil returns the stored block deadline, if any
func (s *PostgresStore) GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error) {
	query := `
		SELECT blocked_until FROM abuse_guard_entries
		WHERE identity = $1 AND blocked_until IS NOT NULL AND block_expires_at >= $2
	`

	var until time.Time
	err := s.db.Pool.QueryRow(ctx, query, key, s.clock.Now().UTC()).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read block record: %w", err)
	}
	return until, true, nil
}

// SetBlockUntil stores a block deadline; the row lives at least until until
func (s *PostgresStore) SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	query := `
		INSERT INTO abuse_guard_entries (identity, blocked_until, block_expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
			blocked_until = EXCLUDED.blocked_until,
			block_expires_at = EXCLUDED.block_expires_at
	`

	expiresAt := blockExpiry(s.clock.Now(), until, ttl)
	if _, err := s.db.Pool.Exec(ctx, query, key, until.UTC(), expiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to store block record: %w", err)
	}
	return nil
}

// SetBlockIfAbsent stores a block deadline unless an active one exists.
// The conditional upsert re-checks the locked row, so only one writer wins.
func (s *PostgresStore) SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO abuse_guard_entries (identity, blocked_until, block_expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
			blocked_until = EXCLUDED.blocked_until,
			block_expires_at = EXCLUDED.block_expires_at
		WHERE abuse_guard_entries.blocked_until IS NULL OR abuse_guard_entries.blocked_until <= $4
		RETURNING identity
	`

	now := s.clock.Now()
	expiresAt := blockExpiry(now, until, ttl)

	var identity string
	err := s.db.Pool.QueryRow(ctx, query, key, until.UTC(), expiresAt.UTC(), now.UTC()).Scan(&identity)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store block record: %w", err)
	}
	return true, nil
}

// Remove deletes the counter and block marker for key
func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM abuse_guard_entries WHERE identity = $1`
	if _, err := s.db.Pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to remove guard entry: %w", err)
	}
	return nil
}

// Ping checks database reachability
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
