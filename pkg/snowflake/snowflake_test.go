// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	// advanceAfter moves the clock forward 1ms once this many reads have
	// happened at the current time.
	advanceAfter int
	reads        int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.advanceAfter > 0 && c.reads > c.advanceAfter {
		c.now = c.now.Add(time.Millisecond)
		c.reads = 0
	}
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name       string
		worker, dc int64
		wantErr    error
	}{
		{"valid", 31, 31, nil},
		{"negative worker", -1, 0, ErrInvalidWorkerID},
		{"worker too large", 32, 0, ErrInvalidWorkerID},
		{"datacenter too large", 0, 32, ErrInvalidDatacenterID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.worker, tt.dc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNext_Layout(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch.Add(1500 * time.Millisecond)}

	g, err := New(7, 3, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)

	first, err := g.Next()
	require.NoError(t, err)
	second, err := g.Next()
	require.NoError(t, err)

	p := Parse(first, epoch)
	assert.Equal(t, int64(7), p.WorkerID)
	assert.Equal(t, int64(3), p.DatacenterID)
	assert.Equal(t, int64(0), p.Sequence)
	assert.True(t, p.Time.Equal(epoch.Add(1500*time.Millisecond)))

	assert.Equal(t, int64(1), Parse(second, epoch).Sequence)
	assert.Greater(t, second, first)
}

func TestNext_SequenceRollover(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch, advanceAfter: sequenceMask + 2}

	g, err := New(1, 1, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)

	ids, err := g.NextN(sequenceMask + 2)
	require.NoError(t, err)

	last := Parse(ids[len(ids)-1], epoch)
	assert.Equal(t, int64(0), last.Sequence)
	assert.True(t, last.Time.After(epoch))

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, len(ids))
}

func TestNext_ClockMovedBackwards(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch.Add(time.Second)}

	g, err := New(0, 0, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = g.Next()
	require.NoError(t, err)

	clock.Set(epoch.Add(500 * time.Millisecond))
	_, err = g.Next()
	assert.ErrorIs(t, err, ErrClockMovedBackwards)
}

func TestNext_BeforeEpoch(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch.Add(-time.Second)}

	g, err := New(0, 0, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = g.Next()
	assert.ErrorIs(t, err, ErrTimestampOverflow)
}

func TestNext_RangeCheckedBeforeClockOrder(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch.Add(time.Second)}

	g, err := New(0, 0, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)
	_, err = g.Next()
	require.NoError(t, err)

	clock.Set(epoch.Add(-time.Millisecond))
	_, err = g.Next()
	assert.ErrorIs(t, err, ErrTimestampOverflow)
	assert.NotErrorIs(t, err, ErrClockMovedBackwards)
}

func TestNext_PastMaxTimestamp(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: epoch.Add((maxTimestamp + 1) * time.Millisecond)}

	g, err := New(0, 0, WithEpoch(epoch), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = g.Next()
	assert.ErrorIs(t, err, ErrTimestampOverflow)
}

func TestWithEpoch_ZeroKeepsDefault(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}

	g, err := New(0, 0, WithEpoch(time.Time{}), WithClock(clock.Now))
	require.NoError(t, err)

	id, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, now, Parse(id, DefaultEpoch).Time.UTC())
}

func TestNext_Concurrent(t *testing.T) {
	g, err := New(2, 2)
	require.NoError(t, err)

	const goroutines, perGoroutine = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := g.NextN(perGoroutine)
			assert.NoError(t, err)
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, goroutines*perGoroutine)
}
