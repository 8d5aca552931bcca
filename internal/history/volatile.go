package history

import (
	"sync"
	"time"

	"github.com/transitlens/transitlens/internal/segment"
)

type volatileEntry struct {
	stat     segment.Stat
	lastSeen time.Time
}

type volatileShard struct {
	mu sync.RWMutex
	m  map[segment.Key]volatileEntry
}

// Volatile is the TTL-evicting statistics cache, used for signals that go
// stale without fresh observations (canceled-trip flags and similar). An
// entry untouched for longer than the TTL is removed by the next sweep and
// recreated on the next observation.
type Volatile struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]volatileShard
}

func NewVolatile(ttl time.Duration) *Volatile {
	return NewVolatileClock(ttl, time.Now)
}

// NewVolatileClock injects the clock, for tests.
func NewVolatileClock(ttl time.Duration, now func() time.Time) *Volatile {
	c := &Volatile{ttl: ttl, now: now}
	for i := range c.shards {
		c.shards[i].m = make(map[segment.Key]volatileEntry)
	}
	return c
}

func (c *Volatile) Get(key segment.Key) (segment.Stat, bool) {
	s := &c.shards[shardIndex(key)]
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok || c.now().Sub(e.lastSeen) > c.ttl {
		// Expired entries are invisible even before the sweep removes them.
		return segment.Stat{}, false
	}
	return e.stat, true
}

func (c *Volatile) Observe(key segment.Key, value float64) {
	now := c.now()
	s := &c.shards[shardIndex(key)]
	s.mu.Lock()
	e := s.m[key]
	if !e.lastSeen.IsZero() && now.Sub(e.lastSeen) > c.ttl {
		// The previous accumulation is stale; restart it.
		e.stat = segment.Stat{}
	}
	e.stat = e.stat.Observe(value)
	e.lastSeen = now
	s.m[key] = e
	s.mu.Unlock()
}

func (c *Volatile) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// EvictIdle removes entries whose last observation is older than the TTL at
// instant now. It runs concurrently with Get and Observe; an entry observed
// while the sweep runs either survives or is recreated by that observation.
// Returns the number of entries removed.
func (c *Volatile) EvictIdle(now time.Time) int {
	evicted := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, e := range s.m {
			if now.Sub(e.lastSeen) > c.ttl {
				delete(s.m, k)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}
