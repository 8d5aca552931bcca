package segment

import "fmt"

// Kind distinguishes travel-time statistics from dwell-time statistics.
// The two are never mixed under one key.
type Kind int

const (
	TravelTime Kind = iota
	DwellTime
)

func (k Kind) String() string {
	if k == DwellTime {
		return "dwell"
	}
	return "travel"
}

// NoBucket marks a key without a time-of-day dimension.
const NoBucket = -1

// Key identifies one unit of prediction: a stop path of a trip (or trip
// pattern), split by travel vs dwell and optionally by time-of-day bucket.
// Keys are comparable and used directly as map keys.
type Key struct {
	TripID       string
	SegmentIndex int
	Kind         Kind
	TimeBucket   int
}

// NewKey builds an unbucketed key for schedule-based service.
func NewKey(tripID string, segmentIndex int, kind Kind) Key {
	return Key{TripID: tripID, SegmentIndex: segmentIndex, Kind: kind, TimeBucket: NoBucket}
}

// NewBucketedKey builds a key carrying a time-of-day bucket, used for
// frequency-based service where trips recur at roughly the same time of day.
func NewBucketedKey(tripID string, segmentIndex int, kind Kind, secondsIntoDay, bucketSizeSeconds int) Key {
	return Key{
		TripID:       tripID,
		SegmentIndex: segmentIndex,
		Kind:         kind,
		TimeBucket:   Bucket(secondsIntoDay, bucketSizeSeconds),
	}
}

// Bucket rounds a seconds-since-midnight value to its containing bucket start.
func Bucket(secondsIntoDay, bucketSizeSeconds int) int {
	if bucketSizeSeconds <= 0 {
		return NoBucket
	}
	if secondsIntoDay < 0 {
		secondsIntoDay = 0
	}
	return (secondsIntoDay / bucketSizeSeconds) * bucketSizeSeconds
}

// Unbucketed returns the same key with the time dimension stripped, which is
// how the frequency cache groups bucket maps per stop path.
func (k Key) Unbucketed() Key {
	k.TimeBucket = NoBucket
	return k
}

func (k Key) String() string {
	if k.TimeBucket == NoBucket {
		return fmt.Sprintf("%s/%d/%s", k.TripID, k.SegmentIndex, k.Kind)
	}
	return fmt.Sprintf("%s/%d/%s@%d", k.TripID, k.SegmentIndex, k.Kind, k.TimeBucket)
}
