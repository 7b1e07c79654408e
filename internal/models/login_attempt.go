package models

import "time"

// AttemptRecord is the failure counter kept per identity
type AttemptRecord struct {
	Identity        string    `db:"identity"`
	FailureCount    int       `db:"failure_count"`
	CountRecordedAt time.Time `db:"count_recorded_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}

// Expired reports whether the counting window has lapsed at now.
// The record stays valid up to and including ExpiresAt.
func (r AttemptRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// BlockRecord marks an identity as temporarily blocked
type BlockRecord struct {
	Identity     string    `db:"identity"`
	BlockedUntil time.Time `db:"blocked_until"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Active reports whether the block is still in force at now
func (b BlockRecord) Active(now time.Time) bool {
	return b.BlockedUntil.After(now)
}

// LockoutStatus aggregates guard state for a single identity
type LockoutStatus struct {
	Identity       string        `json:"email"`
	FailedAttempts int           `json:"failed_attempts"`
	Blocked        bool          `json:"blocked"`
	Remaining      time.Duration `json:"-"`
}
