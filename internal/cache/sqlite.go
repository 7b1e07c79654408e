package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
)

// SQLiteStore keeps guard state in a local SQLite file. Timestamps are stored
// as unix nanoseconds; 0 means unset.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteStore creates a new SQLiteStore
func NewSQLiteStore(db *sql.DB, clk clock.Clock) *SQLiteStore {
	return &SQLiteStore{db: db, clock: clk}
}

// IncrementAndGet atomically bumps the failure counter and refreshes its TTL
func (s *SQLiteStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	query := `
		INSERT INTO abuse_guard_entries (identity, failure_count, count_recorded_at, count_expires_at)
		VALUES (?1, 1, ?2, ?3)
		ON CONFLICT (identity) DO UPDATE SET
			failure_count = CASE
				WHEN abuse_guard_entries.count_expires_at < ?2 THEN 1
				ELSE abuse_guard_entries.failure_count + 1
			END,
			count_recorded_at = excluded.count_recorded_at,
			count_expires_at = excluded.count_expires_at
		RETURNING failure_count
	`

	now := s.clock.Now()

	var count int
	if err := s.db.QueryRowContext(ctx, query, key, now.UnixNano(), now.Add(ttl).UnixNano()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	return count, nil
}

// Get returns the live failure count without touching its TTL
func (s *SQLiteStore) Get(ctx context.Context, key string) (int, error) {
	query := `
		SELECT failure_count FROM abuse_guard_entries
		WHERE identity = ? AND count_expires_at >= ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, key, s.clock.Now().UnixNano()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read attempt counter: %w", err)
	}
	return count, nil
}

// GetBlockUntil returns the stored block deadline, if any
func (s *SQLiteStore) GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error) {
	query := `
		SELECT blocked_until FROM abuse_guard_entries
		WHERE identity = ? AND blocked_until > 0 AND block_expires_at >= ?
	`

	var until int64
	err := s.db.QueryRowContext(ctx, query, key, s.clock.Now().UnixNano()).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read block record: %w", err)
	}
	return time.Unix(0, until), true, nil
}

// SetBlockUntil stores a block deadline; the row lives at least until until
func (s *SQLiteStore) SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	query := `
		INSERT INTO abuse_guard_entries (identity, blocked_until, block_expires_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (identity) DO UPDATE SET
			blocked_until = excluded.blocked_until,
			block_expires_at = excluded.block_expires_at
	`

	expiresAt := blockExpiry(s.clock.Now(), until, ttl)
	if _, err := s.db.ExecContext(ctx, query, key, until.UnixNano(), expiresAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to store block record: %w", err)
	}
	return nil
}

// SetBlockIfAbsent stores a block deadline unless an active one exists
func (s *SQLiteStore) SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO abuse_guard_entries (identity, blocked_until, block_expires_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (identity) DO UPDATE SET
			blocked_until = excluded.blocked_until,
			block_expires_at = excluded.block_expires_at
		WHERE abuse_guard_entries.blocked_until <= ?4
		RETURNING identity
	`

	now := s.clock.Now()
	expiresAt := blockExpiry(now, until, ttl)

	var identity string
	err := s.db.QueryRowContext(ctx, query, key, until.UnixNano(), expiresAt.UnixNano(), now.UnixNano()).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store block record: %w", err)
	}
	return true, nil
}

// Remove deletes the counter and block marker for key
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM abuse_guard_entries WHERE identity = ?`, key); err != nil {
		return fmt.Errorf("failed to remove guard entry: %w", err)
	}
	return nil
}

// Ping checks database reachability
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
