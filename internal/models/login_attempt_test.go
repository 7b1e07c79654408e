package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptRecord_Expired(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := AttemptRecord{FailureCount: 3, CountRecordedAt: t0, ExpiresAt: t0.Add(15 * time.Minute)}

	assert.False(t, rec.Expired(t0))
	assert.False(t, rec.Expired(t0.Add(14*time.Minute)))
	assert.False(t, rec.Expired(t0.Add(15*time.Minute)))
	assert.True(t, rec.Expired(t0.Add(15*time.Minute+time.Nanosecond)))
	assert.True(t, rec.Expired(t0.Add(16*time.Minute)))
}

func TestBlockRecord_Active(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	block := BlockRecord{BlockedUntil: t0.Add(15 * time.Minute), ExpiresAt: t0.Add(30 * time.Minute)}

	assert.True(t, block.Active(t0))
	assert.True(t, block.Active(t0.Add(14*time.Minute)))
	assert.False(t, block.Active(t0.Add(15*time.Minute)))
	assert.False(t, block.Active(t0.Add(time.Hour)))
}
