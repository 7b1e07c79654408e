package cache

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/models"
)

// memoryEntry holds both records for one identity behind its own lock.
// Once removed is set the entry is detached from the map and must not be reused.
type memoryEntry struct {
	mu      sync.Mutex
	removed bool
	attempt *models.AttemptRecord
	block   *models.BlockRecord
}

// MemoryStore is an in-process AttemptStore. Each identity has its own lock,
// so operations on different identities never contend.
type MemoryStore struct {
	entries sync.Map // identity -> *memoryEntry
	clock   clock.Clock
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clock: clk}
}

// lockEntry returns the live entry for key with its lock held, creating it if needed
func (s *MemoryStore) lockEntry(key string) *memoryEntry {
	for {
		v, ok := s.entries.Load(key)
		if !ok {
			v, _ = s.entries.LoadOrStore(key, &memoryEntry{})
		}
		e := v.(*memoryEntry)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		// Lost a race with Remove; the map no longer points at e.
		e.mu.Unlock()
	}
}

// lockExisting returns the live entry for key with its lock held, or nil
func (s *MemoryStore) lockExisting(key string) *memoryEntry {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil
	}
	e := v.(*memoryEntry)
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil
	}
	return e
}

// IncrementAndGet atomically bumps the failure counter and refreshes its TTL
func (s *MemoryStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	e := s.lockEntry(key)
	defer e.mu.Unlock()

	now := s.clock.Now()
	if e.attempt == nil || e.attempt.Expired(now) {
		e.attempt = &models.AttemptRecord{Identity: key}
	}

	e.attempt.FailureCount++
	e.attempt.CountRecordedAt = now
	e.attempt.ExpiresAt = now.Add(ttl)

	return e.attempt.FailureCount, nil
}

// Get returns the live failure count without touching its TTL
func (s *MemoryStore) Get(ctx context.Context, key string) (int, error) {
	e := s.lockExisting(key)
	if e == nil {
		return 0, nil
	}
	defer e.mu.Unlock()

	if e.attempt == nil || e.attempt.Expired(s.clock.Now()) {
		return 0, nil
	}
	return e.attempt.FailureCount, nil
}

// GetBlockUntil returns the stored block deadline, if any
func (s *MemoryStore) GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error) {
	e := s.lockExisting(key)
	if e == nil {
		return time.Time{}, false, nil
	}
	defer e.mu.Unlock()

	if e.block == nil || s.clock.Now().After(e.block.ExpiresAt) {
		return time.Time{}, false, nil
	}
	return e.block.BlockedUntil, true, nil
}

// SetBlockUntil stores a block deadline; the record lives at least until until
func (s *MemoryStore) SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	e := s.lockEntry(key)
	defer e.mu.Unlock()

	e.block = &models.BlockRecord{
		Identity:     key,
		BlockedUntil: until,
		ExpiresAt:    blockExpiry(s.clock.Now(), until, ttl),
	}
	return nil
}

// SetBlockIfAbsent stores a block deadline unless an active one exists.
// The check and the write happen under the entry lock.
func (s *MemoryStore) SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error) {
	e := s.lockEntry(key)
	defer e.mu.Unlock()

	now := s.clock.Now()
	if e.block != nil && e.block.BlockedUntil.After(now) {
		return false, nil
	}

	e.block = &models.BlockRecord{
		Identity:     key,
		BlockedUntil: until,
		ExpiresAt:    blockExpiry(now, until, ttl),
	}
	return true, nil
}

// Remove drops the counter and block marker for key
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	e := s.lockExisting(key)
	if e == nil {
		return nil
	}
	e.removed = true
	s.entries.CompareAndDelete(key, e)
	e.mu.Unlock()
	return nil
}

// Ping always succeeds for the in-process store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// blockExpiry picks the later of now+ttl and until
func blockExpiry(now, until time.Time, ttl time.Duration) time.Time {
	expiresAt := now.Add(ttl)
	if expiresAt.Before(until) {
		return until
	}
	return expiresAt
}
