package clock

import (
	"sync"
	"time"
)

// Clock is the time source used for every expiry decision in the guard
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually driven Clock for tests
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock frozen at start
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the frozen time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set jumps the clock to t
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
