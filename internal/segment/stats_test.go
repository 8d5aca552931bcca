package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatObserve(t *testing.T) {
	var s Stat
	for _, v := range []float64{380, 420, 400} {
		s = s.Observe(v)
	}

	require.EqualValues(t, 3, s.Count)
	assert.InDelta(t, 400.0, s.Mean, 1e-9)
	// Population variance of {380, 420, 400}.
	assert.InDelta(t, 800.0/3.0, s.Variance(), 1e-9)
}

func TestStatVarianceNonNegative(t *testing.T) {
	cases := map[string][]float64{
		"single value": {42},
		"all equal":    {100, 100, 100, 100},
		"large spread": {1, 1e9, 2, 1e9, 3},
		"descending":   {500, 400, 300, 200, 100},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			var s Stat
			for _, v := range values {
				s = s.Observe(v)
			}
			assert.GreaterOrEqual(t, s.Variance(), 0.0)
		})
	}
}

func TestStatZeroValue(t *testing.T) {
	var s Stat
	assert.EqualValues(t, 0, s.Count)
	assert.Zero(t, s.Variance())
	assert.Zero(t, s.StdDev())
}

func TestStatCopySemantics(t *testing.T) {
	var s Stat
	updated := s.Observe(10)

	// The original is untouched; Observe publishes a whole new value.
	assert.EqualValues(t, 0, s.Count)
	assert.EqualValues(t, 1, updated.Count)
	assert.Equal(t, 10.0, updated.Mean)
}

func TestBucketRounding(t *testing.T) {
	assert.Equal(t, 0, Bucket(0, 1800))
	assert.Equal(t, 0, Bucket(1799, 1800))
	assert.Equal(t, 1800, Bucket(1800, 1800))
	assert.Equal(t, 34200, Bucket(35000, 1800))
	assert.Equal(t, NoBucket, Bucket(100, 0))
}

func TestKeyIndependence(t *testing.T) {
	travel := NewKey("trip-1", 4, TravelTime)
	dwell := NewKey("trip-1", 4, DwellTime)
	assert.NotEqual(t, travel, dwell)

	bucketed := NewBucketedKey("trip-1", 4, TravelTime, 35000, 1800)
	assert.Equal(t, 34200, bucketed.TimeBucket)
	assert.Equal(t, travel, bucketed.Unbucketed())
}
