package segment

import "math"

// Stat is a running mean/variance accumulator over observed durations,
// using Welford's online algorithm for numerical stability.
//
// Stat values are immutable once published: callers obtain an updated copy
// via Observe and replace the stored value whole, so a reader never sees a
// mix of old mean with new count.
type Stat struct {
	Count int64
	Mean  float64
	// M2 is the running sum of squared deviations from the mean.
	M2 float64
}

// Observe returns a new Stat that includes value.
func (s Stat) Observe(value float64) Stat {
	s.Count++
	delta := value - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (value - s.Mean)
	return s
}

// Variance is the population variance. Zero for fewer than two samples.
func (s Stat) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	v := s.M2 / float64(s.Count)
	// Welford keeps M2 non-negative, but guard against float drift.
	if v < 0 {
		return 0
	}
	return v
}

// StdDev is the population standard deviation.
func (s Stat) StdDev() float64 {
	return math.Sqrt(s.Variance())
}
