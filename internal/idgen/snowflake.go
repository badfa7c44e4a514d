// Package idgen produces time-ordered, process-unique 64-bit identifiers
// for envelopes and any other record a client may need to deduplicate or
// acknowledge.
//
// Layout (most significant bit first):
//
//	0 | 41 bits ms since Epoch | 10 bits shard | 12 bits sequence
//
// The shard field is the datacenter (high 5 bits) and worker (low 5 bits)
// pair collapsed into one configuration value.
package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	sequenceBits = 12
	shardBits    = 10

	maxSequence = -1 ^ (-1 << sequenceBits)
	// MaxShard is the largest accepted shard id.
	MaxShard = -1 ^ (-1 << shardBits)

	shardShift     = sequenceBits
	timestampShift = sequenceBits + shardBits
)

// Epoch is the custom epoch in unix milliseconds (2024-01-01 00:00:00 +08:00).
const Epoch int64 = 1704038400000

// ErrClockRegression is returned when the wall clock reads earlier than the
// last millisecond an id was issued for.
var ErrClockRegression = errors.New("idgen: clock moved backwards, refusing to generate id")

// Generator is a snowflake id source. The zero value is not usable; create
// one with New. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	shard    int64
	lastMs   int64
	sequence int64

	now func() int64
}

// New returns a Generator for the given shard id (0..MaxShard).
func New(shard int64) (*Generator, error) {
	if shard < 0 || shard > MaxShard {
		return nil, fmt.Errorf("idgen: shard %d out of range [0,%d]", shard, MaxShard)
	}
	return &Generator{
		shard:  shard,
		lastMs: -1,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// MustNew is New that panics on an invalid shard.
func MustNew(shard int64) *Generator {
	g, err := New(shard)
	if err != nil {
		panic(err)
	}
	return g
}

// NextID returns the next id. It fails with ErrClockRegression instead of
// ever emitting a value lower than one it already returned.
func (g *Generator) NextID() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if ts < g.lastMs {
		return 0, fmt.Errorf("%w: now=%d last=%d", ErrClockRegression, ts, g.lastMs)
	}

	if ts == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// sequence exhausted for this millisecond
			for ts <= g.lastMs {
				ts = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ts

	return uint64((ts-Epoch)<<timestampShift | g.shard<<shardShift | g.sequence), nil
}

// Shard returns the shard id encoded into every id from g.
func (g *Generator) Shard() int64 { return g.shard }

// Timestamp extracts the wall-clock instant an id was generated at.
func Timestamp(id uint64) time.Time {
	ms := int64(id>>timestampShift) + Epoch
	return time.UnixMilli(ms)
}
