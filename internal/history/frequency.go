package history

import "github.com/transitlens/transitlens/internal/segment"

// Frequency is the time-of-day bucketed statistics cache for services that
// run without a fixed schedule. Observations are grouped into fixed-width
// buckets of seconds-since-midnight; a lookup only matches history recorded
// in the bucket containing the requested time.
type Frequency struct {
	bucketSeconds int
	inner         *Sharded
}

func NewFrequency(bucketSeconds int) *Frequency {
	return &Frequency{bucketSeconds: bucketSeconds, inner: NewSharded()}
}

// BucketSeconds reports the configured bucket width.
func (c *Frequency) BucketSeconds() int { return c.bucketSeconds }

// Get requires key.TimeBucket to be set; it is normalized to the bucket
// grid before lookup so callers may pass a raw seconds-into-day value.
func (c *Frequency) Get(key segment.Key) (segment.Stat, bool) {
	return c.inner.Get(c.normalize(key))
}

// GetAt looks up the statistic covering secondsIntoDay for an unbucketed key.
func (c *Frequency) GetAt(key segment.Key, secondsIntoDay int) (segment.Stat, bool) {
	key.TimeBucket = segment.Bucket(secondsIntoDay, c.bucketSeconds)
	return c.inner.Get(key)
}

func (c *Frequency) Observe(key segment.Key, value float64) {
	c.inner.Observe(c.normalize(key), value)
}

// ObserveAt records value under the bucket covering secondsIntoDay.
func (c *Frequency) ObserveAt(key segment.Key, secondsIntoDay int, value float64) {
	key.TimeBucket = segment.Bucket(secondsIntoDay, c.bucketSeconds)
	c.inner.Observe(key, value)
}

func (c *Frequency) Len() int { return c.inner.Len() }

func (c *Frequency) Clear() { c.inner.Clear() }

func (c *Frequency) normalize(key segment.Key) segment.Key {
	if key.TimeBucket != segment.NoBucket {
		key.TimeBucket = segment.Bucket(key.TimeBucket, c.bucketSeconds)
	}
	return key
}
