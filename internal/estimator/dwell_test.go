package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens/transitlens/internal/segment"
)

func TestRegressionReadiness(t *testing.T) {
	r := NewRegression(1.0)

	_, ok := r.Predict(5)
	assert.False(t, ok, "empty model has no prediction")

	r.AddSample(1, 10)
	_, ok = r.Predict(5)
	assert.False(t, ok, "a single buffered sample has no prediction")

	r.AddSample(2, 20)
	v, ok := r.Predict(3)
	require.True(t, ok)
	assert.InDelta(t, 30.0, v, 1e-9, "two-point fit is exact")
}

func TestRegressionIncrementalLearning(t *testing.T) {
	r := NewRegression(1.0)
	// Samples on y = 2x + 1.
	for _, x := range []float64{1, 2, 3, 4, 5} {
		r.AddSample(x, 2*x+1)
	}
	v, ok := r.Predict(10)
	require.True(t, ok)
	assert.InDelta(t, 21.0, v, 0.1)
}

func TestRegressionEqualXSeeds(t *testing.T) {
	r := NewRegression(1.0)
	r.AddSample(5, 10)
	r.AddSample(5, 20)
	v, ok := r.Predict(5)
	require.True(t, ok)
	assert.InDelta(t, 15.0, v, 1e-9)
}

func TestRegressionForgettingFactorFavorsRecent(t *testing.T) {
	slow := NewRegression(1.0)
	fast := NewRegression(0.5)

	// Old regime y = x, then a shift to y = 3x.
	for _, x := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		slow.AddSample(x, x)
		fast.AddSample(x, x)
	}
	for _, x := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		slow.AddSample(x, 3*x)
		fast.AddSample(x, 3*x)
	}

	slowV, _ := slow.Predict(6)
	fastV, _ := fast.Predict(6)
	assert.Greater(t, fastV, slowV, "forgetful model adapts to the new regime faster")
	assert.InDelta(t, 18.0, fastV, 2.0)
}

func TestDwellModelCachePredict(t *testing.T) {
	cache := NewDwellModelCache(0.75)
	key := segment.NewKey("trip-9", 4, segment.DwellTime)

	_, ok := cache.Predict(key, 600000)
	assert.False(t, ok)

	// Longer headways produce longer dwells.
	cache.AddSample(key, 300000, 15000)
	_, ok = cache.Predict(key, 600000)
	assert.False(t, ok, "model not fitted until the second sample")

	cache.AddSample(key, 600000, 30000)
	v, ok := cache.Predict(key, 450000)
	require.True(t, ok)
	assert.Greater(t, v, 15000.0)
	assert.Less(t, v, 30000.0)

	assert.Equal(t, 1, cache.Len())
}

func TestDwellModelCacheIgnoresTimeBucket(t *testing.T) {
	cache := NewDwellModelCache(0.75)
	bucketed := segment.NewBucketedKey("pattern-9", 4, segment.DwellTime, 9*3600, 1800)

	// Samples recorded under bucketed keys serve lookups under any bucket,
	// and under the plain key: one model per stop path.
	cache.AddSample(bucketed, 300000, 15000)
	cache.AddSample(bucketed, 600000, 30000)

	_, ok := cache.Predict(bucketed, 450000)
	assert.True(t, ok)

	_, ok = cache.Predict(bucketed.Unbucketed(), 450000)
	assert.True(t, ok)

	other := segment.NewBucketedKey("pattern-9", 4, segment.DwellTime, 14*3600, 1800)
	_, ok = cache.Predict(other, 450000)
	assert.True(t, ok)

	assert.Equal(t, 1, cache.Len())
}

func TestDwellModelCachePerKeyIsolation(t *testing.T) {
	cache := NewDwellModelCache(0.75)
	a := segment.NewKey("trip-a", 1, segment.DwellTime)
	b := segment.NewKey("trip-b", 1, segment.DwellTime)

	cache.AddSample(a, 300000, 10000)
	cache.AddSample(a, 600000, 20000)

	_, ok := cache.Predict(b, 300000)
	assert.False(t, ok)

	_, ok = cache.Predict(a, 300000)
	assert.True(t, ok)
}
