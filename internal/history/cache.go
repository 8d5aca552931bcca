// Package history holds the shared, continuously updated caches the
// prediction strategies read from: per-segment running statistics in three
// policy variants and the carried Kalman filter error.
//
// All caches are safe for concurrent use from many vehicle workers. Locking
// is striped across shards so updates to different segments never contend;
// a single cache-wide lock is deliberately avoided. Stat values are stored
// by value and replaced whole, so readers never observe a torn update.
package history

import (
	"hash/fnv"
	"sync"

	"github.com/transitlens/transitlens/internal/segment"
)

const shardCount = 64

// StatsCache is the contract shared by the unbucketed, frequency and
// TTL-evicting statistics caches.
type StatsCache interface {
	// Get returns the accumulated statistic for key, or false when the key
	// has never been observed.
	Get(key segment.Key) (segment.Stat, bool)
	// Observe folds value into the statistic for key, creating the entry if
	// absent. Concurrent calls never lose updates.
	Observe(key segment.Key, value float64)
	// Len reports the number of live entries, for diagnostics.
	Len() int
}

func shardIndex(key segment.Key) int {
	h := fnv.New32a()
	h.Write([]byte(key.TripID))
	h.Write([]byte{
		byte(key.SegmentIndex), byte(key.SegmentIndex >> 8),
		byte(key.Kind),
		byte(key.TimeBucket), byte(key.TimeBucket >> 8), byte(key.TimeBucket >> 16),
	})
	return int(h.Sum32() % shardCount)
}

type statShard struct {
	mu sync.RWMutex
	m  map[segment.Key]segment.Stat
}

// Sharded is the unbucketed statistics cache for schedule-based service.
// Entries are created lazily on first observation and live for the process
// lifetime (or until Clear on configuration reload).
type Sharded struct {
	shards [shardCount]statShard
}

func NewSharded() *Sharded {
	c := &Sharded{}
	for i := range c.shards {
		c.shards[i].m = make(map[segment.Key]segment.Stat)
	}
	return c
}

func (c *Sharded) Get(key segment.Key) (segment.Stat, bool) {
	s := &c.shards[shardIndex(key)]
	s.mu.RLock()
	stat, ok := s.m[key]
	s.mu.RUnlock()
	return stat, ok
}

func (c *Sharded) Observe(key segment.Key, value float64) {
	s := &c.shards[shardIndex(key)]
	s.mu.Lock()
	s.m[key] = s.m[key].Observe(value)
	s.mu.Unlock()
}

func (c *Sharded) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Clear drops every entry. Used on configuration reload.
func (c *Sharded) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.m = make(map[segment.Key]segment.Stat)
		s.mu.Unlock()
	}
}

// Snapshot copies the current contents, for the diagnostic dump endpoint.
func (c *Sharded) Snapshot() map[segment.Key]segment.Stat {
	out := make(map[segment.Key]segment.Stat)
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}
