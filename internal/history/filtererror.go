package history

import (
	"sync"

	"github.com/transitlens/transitlens/internal/segment"
)

type errorShard struct {
	mu sync.RWMutex
	m  map[segment.Key]float64
}

// FilterErrorCache carries the Kalman filter error from one prediction to
// the next for a segment. It is first-class shared state under the same
// per-key striping discipline as the statistics caches: two concurrent
// predictions on one segment may race to store their error (last writer
// wins) but a reader never sees a partial value.
type FilterErrorCache struct {
	initial float64
	shards  [shardCount]errorShard
}

// NewFilterErrorCache seeds unseen segments with initial, the error value
// the filter starts from before its first measurement.
func NewFilterErrorCache(initial float64) *FilterErrorCache {
	c := &FilterErrorCache{initial: initial}
	for i := range c.shards {
		c.shards[i].m = make(map[segment.Key]float64)
	}
	return c
}

// Get returns the carried error for key, or the configured initial value
// (and false) when no prediction has run for the segment yet.
func (c *FilterErrorCache) Get(key segment.Key) (float64, bool) {
	s := &c.shards[shardIndex(key)]
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return c.initial, false
	}
	return v, true
}

func (c *FilterErrorCache) Put(key segment.Key, value float64) {
	s := &c.shards[shardIndex(key)]
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}
