package idgen

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_ShardRange(t *testing.T) {
	_, err := New(-1)
	require.Error(t, err)
	_, err = New(MaxShard + 1)
	require.Error(t, err)

	g, err := New(MaxShard)
	require.NoError(t, err)
	require.Equal(t, int64(MaxShard), g.Shard())
}

func TestNextID_ConcurrentUniqueAndOrdered(t *testing.T) {
	g := MustNew(33)

	const workers = 16
	const perWorker = 2000

	var wg sync.WaitGroup
	results := make([][]uint64, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := g.NextID()
				if err != nil {
					t.Errorf("NextID: %v", err)
					return
				}
				ids = append(ids, id)
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, workers*perWorker)
	for _, ids := range results {
		// every goroutine observes strictly increasing ids
		for i := 1; i < len(ids); i++ {
			require.Greater(t, ids[i], ids[i-1])
		}
		for _, id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
	}
	require.Len(t, seen, workers*perWorker)

	all := make([]uint64, 0, len(seen))
	for id := range seen {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	require.False(t, Timestamp(all[0]).After(Timestamp(all[len(all)-1])))
}

func TestNextID_ClockRegression(t *testing.T) {
	g := MustNew(1)
	now := Epoch + 10_000
	g.now = func() int64 { return now }

	first, err := g.NextID()
	require.NoError(t, err)

	now -= 5
	_, err = g.NextID()
	require.True(t, errors.Is(err, ErrClockRegression), "got %v", err)

	// recovering clock resumes above the last id
	now += 10
	next, err := g.NextID()
	require.NoError(t, err)
	require.Greater(t, next, first)
}

func TestNextID_SequenceExhaustionWaitsForNextMillisecond(t *testing.T) {
	g := MustNew(2)
	base := Epoch + 1_000
	calls := 0
	g.now = func() int64 {
		calls++
		// the first maxSequence+1 reads stay on the same millisecond
		if calls <= maxSequence+2 {
			return base
		}
		return base + 1
	}

	var last uint64
	for i := 0; i <= maxSequence; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}

	id, err := g.NextID()
	require.NoError(t, err)
	require.Greater(t, id, last)
	require.Equal(t, base+1, Timestamp(id).UnixMilli())
	require.Equal(t, uint64(0), id&maxSequence)
}

func TestTimestamp_RoundTrip(t *testing.T) {
	g := MustNew(7)
	before := time.Now().Add(-time.Millisecond)
	id, err := g.NextID()
	require.NoError(t, err)
	ts := Timestamp(id)
	require.False(t, ts.Before(before.Truncate(time.Millisecond)))
	require.Equal(t, uint64(7), (id>>shardShift)&MaxShard)
}
