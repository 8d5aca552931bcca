package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens/transitlens/internal/segment"
)

func TestFrequencyBucketGrouping(t *testing.T) {
	cache := NewFrequency(1800)
	key := segment.NewKey("freq-trip", 2, segment.TravelTime)

	// 09:01 and 09:20 share the 09:00 bucket; 10:05 does not.
	cache.ObserveAt(key, 9*3600+60, 300)
	cache.ObserveAt(key, 9*3600+20*60, 340)
	cache.ObserveAt(key, 10*3600+5*60, 900)

	stat, ok := cache.GetAt(key, 9*3600+15*60)
	require.True(t, ok)
	assert.EqualValues(t, 2, stat.Count)
	assert.InDelta(t, 320.0, stat.Mean, 1e-9)

	stat, ok = cache.GetAt(key, 10*3600)
	require.True(t, ok)
	assert.EqualValues(t, 1, stat.Count)
}

func TestFrequencyNoDataOutsideBucket(t *testing.T) {
	cache := NewFrequency(1800)
	key := segment.NewKey("freq-trip", 2, segment.TravelTime)

	cache.ObserveAt(key, 9*3600, 300)

	_, ok := cache.GetAt(key, 11*3600)
	assert.False(t, ok)
}

func TestFrequencyNormalizesRawTimes(t *testing.T) {
	cache := NewFrequency(1800)
	raw := segment.Key{TripID: "freq-trip", SegmentIndex: 0, Kind: segment.DwellTime, TimeBucket: 9*3600 + 421}

	cache.Observe(raw, 12000)

	stat, ok := cache.GetAt(raw.Unbucketed(), 9*3600+900)
	require.True(t, ok)
	assert.EqualValues(t, 1, stat.Count)
}

func TestVolatileEviction(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	cache := NewVolatileClock(60*time.Second, clock)
	key := segment.NewKey("canceled-trip", 0, segment.TravelTime)

	cache.Observe(key, 1)
	_, ok := cache.Get(key)
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	assert.Equal(t, 1, cache.EvictIdle(now))

	_, ok = cache.Get(key)
	assert.False(t, ok)
	assert.Zero(t, cache.Len())

	// A fresh observation recreates the entry from scratch.
	cache.Observe(key, 5)
	stat, ok := cache.Get(key)
	require.True(t, ok)
	assert.EqualValues(t, 1, stat.Count)
}

func TestVolatileExpiredInvisibleBeforeSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewVolatileClock(60*time.Second, func() time.Time { return now })
	key := segment.NewKey("canceled-trip", 0, segment.TravelTime)

	cache.Observe(key, 1)
	now = now.Add(2 * time.Minute)

	_, ok := cache.Get(key)
	assert.False(t, ok)

	// Observing after expiry restarts the accumulation rather than
	// extending the stale one.
	cache.Observe(key, 9)
	stat, _ := cache.Get(key)
	assert.EqualValues(t, 1, stat.Count)
	assert.Equal(t, 9.0, stat.Mean)
}

func TestVolatileFreshEntrySurvivesSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewVolatileClock(60*time.Second, func() time.Time { return now })
	key := segment.NewKey("live-trip", 0, segment.TravelTime)

	cache.Observe(key, 1)
	assert.Zero(t, cache.EvictIdle(now.Add(30*time.Second)))

	_, ok := cache.Get(key)
	assert.True(t, ok)
}
