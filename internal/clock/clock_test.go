package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(16 * time.Minute)
	assert.Equal(t, start.Add(16*time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemClock_Now(t *testing.T) {
	before := time.Now()
	got := SystemClock{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
