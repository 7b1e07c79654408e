package services

import (
	"fmt"
	"time"
)

// LockoutPolicy holds the thresholds the abuse guard enforces
type LockoutPolicy struct {
	Threshold     int           // failures within the window that trigger a block
	BlockDuration time.Duration // how long a triggered block lasts
	AttemptsTTL   time.Duration // counting window, refreshed on every failure
}

// DefaultLockoutPolicy returns 5 failures / 15 minute block / 15 minute window
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold:     5,
		BlockDuration: 15 * time.Minute,
		AttemptsTTL:   15 * time.Minute,
	}
}

// Validate rejects non-positive parameters
func (p LockoutPolicy) Validate() error {
	if p.Threshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", p.Threshold)
	}
	if p.BlockDuration <= 0 {
		return fmt.Errorf("block duration must be positive, got %s", p.BlockDuration)
	}
	if p.AttemptsTTL <= 0 {
		return fmt.Errorf("attempts ttl must be positive, got %s", p.AttemptsTTL)
	}
	return nil
}

// Decide evaluates a post-increment failure count
func (p LockoutPolicy) Decide(count int, now time.Time) (time.Time, bool) {
	if count < p.Threshold {
		return time.Time{}, false
	}
	return now.Add(p.BlockDuration), true
}

// Remaining is the number of failures left before a block, never negative
func (p LockoutPolicy) Remaining(count int) int {
	return max(p.Threshold-count, 0)
}
