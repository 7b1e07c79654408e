package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay      time.Duration
	RandomDelay    time.Duration // upper bound of the jitter added to BaseDelay
	DelayOnSuccess bool
}

// TimingDelay pads login responses so that unknown accounts, wrong passwords
// and blocked identities take roughly the same time to answer
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
	since  func(time.Time) time.Duration
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
		since:  time.Since,
	}
}

// Target returns the padded duration for one response
func (td *TimingDelay) Target() time.Duration {
	target := td.config.BaseDelay
	if td.config.RandomDelay > 0 {
		// crypto/rand so the jitter cannot be predicted
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelay))); err == nil {
			target += time.Duration(n.Int64())
		}
	}
	return target
}

// WaitFrom sleeps until at least Target() has elapsed since start
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}

	if remaining := td.Target() - td.since(start); remaining > 0 {
		td.sleep(remaining)
	}
}
