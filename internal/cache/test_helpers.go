package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory builds a fresh, empty store driven by clk
type StoreFactory func(t *testing.T, clk *clock.Fake) Store

// TestEpoch is the fixed start time used by store tests
var TestEpoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// RunStoreConformance exercises the behaviour every Store backend must share
func RunStoreConformance(t *testing.T, newStore StoreFactory) {
	ttl := 15 * time.Minute

	t.Run("absent key reads as empty", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		count, err := s.Get(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		_, ok, err := s.GetBlockUntil(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("increments are sequential", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		for want := 1; want <= 4; want++ {
			got, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("counter expires after ttl", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		_, err = s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)

		clk.Advance(ttl)
		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 2, count, "record is still valid exactly at the ttl boundary")

		clk.Advance(time.Second)
		count, err = s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		got, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		assert.Equal(t, 1, got, "expired counter restarts at 1")
	})

	t.Run("increment refreshes ttl", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		clk.Advance(10 * time.Minute)
		_, err = s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		clk.Advance(10 * time.Minute)

		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("get does not extend ttl", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		clk.Advance(10 * time.Minute)
		_, err = s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		clk.Advance(6 * time.Minute)

		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("block record round trip", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		until := TestEpoch.Add(15 * time.Minute)
		require.NoError(t, s.SetBlockUntil(ctx, "a@x.com", until, time.Minute))

		// ttl shorter than the deadline must not evict the record early
		clk.Advance(10 * time.Minute)
		got, ok, err := s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Equal(until), "got %v, want %v", got, until)

		clk.Advance(6 * time.Minute)
		_, ok, err = s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("conditional block write keeps an active block", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		// A counter row without a block must not prevent the write
		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)

		first := TestEpoch.Add(15 * time.Minute)
		written, err := s.SetBlockIfAbsent(ctx, "a@x.com", first, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, written)

		clk.Advance(time.Minute)
		written, err = s.SetBlockIfAbsent(ctx, "a@x.com", clk.Now().Add(15*time.Minute), 15*time.Minute)
		require.NoError(t, err)
		assert.False(t, written)

		got, ok, err := s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Equal(first), "active block must not move: got %v, want %v", got, first)

		// Once the deadline has passed a new block may be written
		clk.Set(first)
		second := first.Add(15 * time.Minute)
		written, err = s.SetBlockIfAbsent(ctx, "a@x.com", second, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, written)

		got, ok, err = s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Equal(second), "got %v, want %v", got, second)
	})

	t.Run("concurrent conditional block writes have one winner", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		const workers = 16
		wins := make([]bool, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				until := TestEpoch.Add(time.Duration(10+i) * time.Minute)
				wins[i], errs[i] = s.SetBlockIfAbsent(ctx, "burst@x.com", until, 30*time.Minute)
			}(i)
		}
		wg.Wait()

		winners := 0
		winner := -1
		for i := range wins {
			require.NoError(t, errs[i], fmt.Sprintf("worker %d", i))
			if wins[i] {
				winners++
				winner = i
			}
		}
		require.Equal(t, 1, winners)

		got, ok, err := s.GetBlockUntil(ctx, "burst@x.com")
		require.NoError(t, err)
		require.True(t, ok)
		want := TestEpoch.Add(time.Duration(10+winner) * time.Minute)
		assert.True(t, got.Equal(want), "stored deadline belongs to the winner: got %v, want %v", got, want)
	})

	t.Run("counter and block have independent lifecycles", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", 5*time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.SetBlockUntil(ctx, "a@x.com", TestEpoch.Add(30*time.Minute), 30*time.Minute))

		clk.Advance(6 * time.Minute)

		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		_, ok, err := s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("remove clears counter and block", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		require.NoError(t, s.SetBlockUntil(ctx, "a@x.com", TestEpoch.Add(ttl), ttl))

		require.NoError(t, s.Remove(ctx, "a@x.com"))

		count, err := s.Get(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		_, ok, err := s.GetBlockUntil(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Remove(ctx, "never-seen@x.com"))

		got, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		_, err := s.IncrementAndGet(ctx, "a@x.com", ttl)
		require.NoError(t, err)

		count, err := s.Get(ctx, "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		clk := clock.NewFake(TestEpoch)
		s := newStore(t, clk)
		ctx := context.Background()

		const workers = 32
		results := make([]int, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = s.IncrementAndGet(ctx, "burst@x.com", ttl)
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, fmt.Sprintf("worker %d", i))
		}

		sort.Ints(results)
		for i, got := range results {
			assert.Equal(t, i+1, got, "every caller sees a distinct post-increment value")
		}

		count, err := s.Get(ctx, "burst@x.com")
		require.NoError(t, err)
		assert.Equal(t, workers, count)
	})
}
