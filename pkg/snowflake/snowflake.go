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

// Package snowflake generates roughly time-ordered 64-bit IDs.
//
// An ID packs, from the most significant bit down: one unused sign bit, 41
// bits of milliseconds since the epoch, 5 bits of datacenter, 5 bits of
// worker and a 12-bit sequence.
package snowflake

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	workerBits     = 5
	datacenterBits = 5
	sequenceBits   = 12

	// MaxWorkerID is the largest worker ID.
	MaxWorkerID = 1<<workerBits - 1
	// MaxDatacenterID is the largest datacenter ID.
	MaxDatacenterID = 1<<datacenterBits - 1

	sequenceMask    = 1<<sequenceBits - 1
	workerShift     = sequenceBits
	datacenterShift = sequenceBits + workerBits
	timestampShift  = sequenceBits + workerBits + datacenterBits
	maxTimestamp    = 1<<41 - 1
)

// DefaultEpoch is 2010-11-04T01:42:54.657Z.
var DefaultEpoch = time.UnixMilli(1288834974657)

var (
	// ErrInvalidWorkerID indicates a worker ID outside 0..MaxWorkerID.
	ErrInvalidWorkerID = errors.New("snowflake: invalid worker ID")

	// ErrInvalidDatacenterID indicates a datacenter ID outside
	// 0..MaxDatacenterID.
	ErrInvalidDatacenterID = errors.New("snowflake: invalid datacenter ID")

	// ErrClockMovedBackwards indicates the clock returned a time earlier
	// than the last generated ID.
	ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")

	// ErrTimestampOverflow indicates the 41-bit timestamp is exhausted or
	// the clock is before the epoch.
	ErrTimestampOverflow = errors.New("snowflake: timestamp out of range")
)

// Option configures a Generator.
type Option func(*Generator)

// WithEpoch sets the epoch IDs are measured from. The zero time keeps
// DefaultEpoch.
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		if !epoch.IsZero() {
			g.epoch = epoch.UnixMilli()
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator issues IDs for one worker. It is safe for concurrent use.
type Generator struct {
	mu           sync.Mutex
	workerID     int64
	datacenterID int64
	epoch        int64
	now          func() time.Time
	lastMillis   int64
	sequence     int64
}

// New returns a generator for workerID in datacenterID.
func New(workerID, datacenterID int64, opts ...Option) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerID, workerID)
	}
	if datacenterID < 0 || datacenterID > MaxDatacenterID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDatacenterID, datacenterID)
	}
	g := &Generator{
		workerID:     workerID,
		datacenterID: datacenterID,
		epoch:        DefaultEpoch.UnixMilli(),
		now:          time.Now,
		lastMillis:   -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Next returns the next ID. When the sequence for the current millisecond
// is exhausted it waits for the next millisecond. A clock that moves
// backwards fails immediately.
func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.millis()
	if millis < 0 || millis > maxTimestamp {
		return 0, ErrTimestampOverflow
	}
	if millis < g.lastMillis {
		return 0, fmt.Errorf("%w: by %dms", ErrClockMovedBackwards, g.lastMillis-millis)
	}

	if millis == g.lastMillis {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			for millis <= g.lastMillis {
				time.Sleep(100 * time.Microsecond)
				millis = g.millis()
			}
		}
	} else {
		g.sequence = 0
	}

	if millis > maxTimestamp {
		return 0, ErrTimestampOverflow
	}
	g.lastMillis = millis

	return millis<<timestampShift |
		g.datacenterID<<datacenterShift |
		g.workerID<<workerShift |
		g.sequence, nil
}

// NextN returns n IDs.
func (g *Generator) NextN(n int) ([]int64, error) {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := g.Next()
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *Generator) millis() int64 {
	return g.now().UnixMilli() - g.epoch
}

// Parts is a decomposed ID.
type Parts struct {
	Time         time.Time
	DatacenterID int64
	WorkerID     int64
	Sequence     int64
}

// Parse decomposes id using epoch. A zero epoch selects DefaultEpoch.
func Parse(id int64, epoch time.Time) Parts {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	return Parts{
		Time:         time.UnixMilli(epoch.UnixMilli() + id>>timestampShift),
		DatacenterID: id >> datacenterShift & MaxDatacenterID,
		WorkerID:     id >> workerShift & MaxWorkerID,
		Sequence:     id & sequenceMask,
	}
}
