package history

import (
	"sync"
	"time"

	"github.com/transitlens/transitlens/internal/segment"
)

// Traversal is the most recent completed crossing of a segment, kept so the
// next vehicle can be predicted from the one ahead of it.
type Traversal struct {
	VehicleID      string
	DurationMillis float64
	ObservedAt     time.Time
}

type traversalShard struct {
	mu sync.RWMutex
	m  map[segment.Key]Traversal
}

// LastTraversalCache remembers, per segment, the latest observed traversal.
// Same striping discipline as the statistics caches; last writer wins.
type LastTraversalCache struct {
	shards [shardCount]traversalShard
}

func NewLastTraversalCache() *LastTraversalCache {
	c := &LastTraversalCache{}
	for i := range c.shards {
		c.shards[i].m = make(map[segment.Key]Traversal)
	}
	return c
}

func (c *LastTraversalCache) Put(key segment.Key, t Traversal) {
	s := &c.shards[shardIndex(key)]
	s.mu.Lock()
	s.m[key] = t
	s.mu.Unlock()
}

// Get returns the last traversal of key, if any.
func (c *LastTraversalCache) Get(key segment.Key) (Traversal, bool) {
	s := &c.shards[shardIndex(key)]
	s.mu.RLock()
	t, ok := s.m[key]
	s.mu.RUnlock()
	return t, ok
}

// GetPreceding returns the last traversal only when it was made by a
// different vehicle on the same service day as now. The first vehicle of
// the day must not be predicted from yesterday's traffic.
func (c *LastTraversalCache) GetPreceding(key segment.Key, vehicleID string, now time.Time) (Traversal, bool) {
	t, ok := c.Get(key)
	if !ok || t.VehicleID == vehicleID || !sameDay(t.ObservedAt, now) {
		return Traversal{}, false
	}
	return t, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
