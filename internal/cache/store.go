// Package cache provides the TTL-aware counter stores backing the login abuse guard.
//
// Every backend evaluates expiry lazily against an injected clock: expired
// records read as absent and are only physically replaced on the next write.
package cache

import (
	"context"
	"time"
)

// Store is the contract shared by every backend in this package
type Store interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error)
	Get(ctx context.Context, key string) (int, error)
	GetBlockUntil(ctx context.Context, key string) (time.Time, bool, error)
	SetBlockUntil(ctx context.Context, key string, until time.Time, ttl time.Duration) error
	SetBlockIfAbsent(ctx context.Context, key string, until time.Time, ttl time.Duration) (bool, error)
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
