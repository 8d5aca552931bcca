package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens/transitlens/internal/segment"
)

func TestShardedObserveAccumulates(t *testing.T) {
	cache := NewSharded()
	keyA := segment.NewKey("trip-7", 3, segment.TravelTime)

	cache.Observe(keyA, 380)
	cache.Observe(keyA, 420)
	cache.Observe(keyA, 400)

	stat, ok := cache.Get(keyA)
	require.True(t, ok)
	assert.EqualValues(t, 3, stat.Count)
	assert.InDelta(t, 400.0, stat.Mean, 1e-9)
}

func TestShardedGetAbsent(t *testing.T) {
	cache := NewSharded()
	_, ok := cache.Get(segment.NewKey("nope", 0, segment.TravelTime))
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestShardedTravelAndDwellIndependent(t *testing.T) {
	cache := NewSharded()
	travel := segment.NewKey("trip-7", 3, segment.TravelTime)
	dwell := segment.NewKey("trip-7", 3, segment.DwellTime)

	cache.Observe(travel, 60000)
	cache.Observe(dwell, 9000)

	ts, _ := cache.Get(travel)
	ds, _ := cache.Get(dwell)
	assert.Equal(t, 60000.0, ts.Mean)
	assert.Equal(t, 9000.0, ds.Mean)
}

// Count after N concurrent observes must be exactly N: no lost updates.
func TestShardedConcurrentObserve(t *testing.T) {
	cache := NewSharded()
	key := segment.NewKey("trip-busy", 1, segment.TravelTime)

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				cache.Observe(key, 250)
			}
		}()
	}
	wg.Wait()

	stat, ok := cache.Get(key)
	require.True(t, ok)
	assert.EqualValues(t, workers*perWorker, stat.Count)
	assert.InDelta(t, 250.0, stat.Mean, 1e-9)
}

func TestShardedConcurrentDistinctKeys(t *testing.T) {
	cache := NewSharded()

	var wg sync.WaitGroup
	for w := 0; w < 32; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := segment.NewKey("trip", n, segment.TravelTime)
			for i := 0; i < 200; i++ {
				cache.Observe(key, float64(n))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 32, cache.Len())
	for n := 0; n < 32; n++ {
		stat, ok := cache.Get(segment.NewKey("trip", n, segment.TravelTime))
		require.True(t, ok)
		assert.EqualValues(t, 200, stat.Count)
	}
}

func TestShardedClearAndSnapshot(t *testing.T) {
	cache := NewSharded()
	key := segment.NewKey("trip-7", 3, segment.TravelTime)
	cache.Observe(key, 100)

	snap := cache.Snapshot()
	require.Len(t, snap, 1)
	assert.EqualValues(t, 1, snap[key].Count)

	cache.Clear()
	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestFilterErrorCache(t *testing.T) {
	cache := NewFilterErrorCache(100)
	key := segment.NewKey("trip-7", 3, segment.TravelTime)

	initial, seen := cache.Get(key)
	assert.False(t, seen)
	assert.Equal(t, 100.0, initial)

	cache.Put(key, 42.5)
	v, seen := cache.Get(key)
	assert.True(t, seen)
	assert.Equal(t, 42.5, v)
}
