package estimator

import (
	"math"
	"sync"

	"github.com/transitlens/transitlens/internal/segment"
)

// Regression is an incremental least-squares fit of y on a single covariate,
// updated online with a forgetting factor. It is lazily materialized: the
// first sample is only buffered, the second constructs the model, and later
// samples run one recursive-least-squares step each.
type Regression struct {
	lambda float64

	count int64
	seedX float64
	seedY float64

	// Coefficients of y = intercept + slope*x.
	intercept float64
	slope     float64

	// Inverse-covariance state for the RLS update.
	p00, p01, p11 float64
}

// NewRegression creates an empty model. lambda in (0, 1] sets how quickly
// old samples are forgotten; 1 weights all samples equally.
func NewRegression(lambda float64) *Regression {
	return &Regression{lambda: lambda}
}

// Count reports how many samples the model has absorbed.
func (r *Regression) Count() int64 { return r.count }

// AddSample feeds one (x, y) pair.
func (r *Regression) AddSample(x, y float64) {
	r.count++
	switch r.count {
	case 1:
		r.seedX, r.seedY = x, y
	case 2:
		r.materialize(x, y)
	default:
		r.step(x, y)
	}
}

// Predict returns the fitted value at x, or false while the model has fewer
// than two samples.
func (r *Regression) Predict(x float64) (float64, bool) {
	if r.count < 2 {
		return 0, false
	}
	return r.intercept + r.slope*x, true
}

// materialize solves the exact fit through the buffered seed and the second
// sample, and seeds the covariance state for later incremental updates.
func (r *Regression) materialize(x, y float64) {
	if x != r.seedX {
		r.slope = (y - r.seedY) / (x - r.seedX)
		r.intercept = r.seedY - r.slope*r.seedX
	} else {
		r.slope = 0
		r.intercept = (y + r.seedY) / 2
	}
	const initialCovariance = 1000
	r.p00, r.p01, r.p11 = initialCovariance, 0, initialCovariance
}

func (r *Regression) step(x, y float64) {
	// phi = (1, x); k = P*phi / (lambda + phi'*P*phi)
	q0 := r.p00 + r.p01*x
	q1 := r.p01 + r.p11*x
	denom := r.lambda + q0 + q1*x
	if denom == 0 {
		return
	}
	k0 := q0 / denom
	k1 := q1 / denom

	residual := y - (r.intercept + r.slope*x)
	r.intercept += k0 * residual
	r.slope += k1 * residual

	// P = (P - k*phi'*P) / lambda
	r.p00 = (r.p00 - k0*q0) / r.lambda
	r.p01 = (r.p01 - k0*q1) / r.lambda
	r.p11 = (r.p11 - k1*q1) / r.lambda
}

const dwellModelShards = 64

type dwellShard struct {
	mu sync.Mutex
	m  map[segment.Key]*Regression
}

// DwellModelCache keeps one regression of dwell time on headway per stop
// path; keys are normalized to their unbucketed form, so bucketed and
// unbucketed callers reach the same model. Dwell times are fitted in log10
// space, which keeps the occasional long dwell from dominating the fit.
// Locking is per shard, so vehicles updating different stops do not contend.
type DwellModelCache struct {
	lambda float64
	shards [dwellModelShards]dwellShard
}

func NewDwellModelCache(lambda float64) *DwellModelCache {
	c := &DwellModelCache{lambda: lambda}
	for i := range c.shards {
		c.shards[i].m = make(map[segment.Key]*Regression)
	}
	return c
}

func (c *DwellModelCache) shard(key segment.Key) *dwellShard {
	h := uint32(2166136261)
	for _, b := range []byte(key.TripID) {
		h = (h ^ uint32(b)) * 16777619
	}
	h ^= uint32(key.SegmentIndex)
	return &c.shards[h%dwellModelShards]
}

// AddSample records an observed (headway, dwell) pair for key.
func (c *DwellModelCache) AddSample(key segment.Key, headwayMillis, dwellMillis float64) {
	key = key.Unbucketed()
	if dwellMillis < 1 {
		dwellMillis = 1
	}
	s := c.shard(key)
	s.mu.Lock()
	model, ok := s.m[key]
	if !ok {
		model = NewRegression(c.lambda)
		s.m[key] = model
	}
	model.AddSample(headwayMillis, math.Log10(dwellMillis))
	s.mu.Unlock()
}

// Predict estimates dwell time in millis for the given headway, or false
// when the model for key is not yet fitted.
func (c *DwellModelCache) Predict(key segment.Key, headwayMillis float64) (float64, bool) {
	key = key.Unbucketed()
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	model, ok := s.m[key]
	if !ok {
		return 0, false
	}
	logDwell, ok := model.Predict(headwayMillis)
	if !ok {
		return 0, false
	}
	return math.Pow(10, logDwell), true
}

func (c *DwellModelCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}
