package estimator

import "github.com/transitlens/transitlens/internal/segment"

// BlendResult is the outcome of one Kalman-style blend: the estimate itself
// and the propagated filter error the next prediction on the segment starts
// from.
type BlendResult struct {
	Estimate    float64
	FilterError float64
	Gain        float64
}

// Blend refines the preceding vehicle's observed duration with the
// historical distribution for the same segment, weighting by uncertainty.
//
// The gain K = priorError / (priorError + historicalVariance) lies in
// [0, 1]: a confident filter (small prior error) sticks near the historical
// mean, a noisy one follows the last vehicle. The propagated error
// (1-K)*priorError is floored at epsilon so the filter can never freeze at
// zero confidence.
func Blend(lastVehicleValue float64, hist segment.Stat, priorError, epsilon float64) BlendResult {
	if priorError < 0 {
		priorError = 0
	}
	variance := hist.Variance()

	var gain float64
	if priorError+variance > 0 {
		gain = priorError / (priorError + variance)
	}
	// Degenerate history (all samples equal) with a fresh filter: trust the
	// last vehicle outright.
	if priorError == 0 && variance == 0 {
		gain = 1
	}

	estimate := hist.Mean + gain*(lastVehicleValue-hist.Mean)

	nextError := (1 - gain) * priorError
	if nextError < epsilon {
		nextError = epsilon
	}

	return BlendResult{Estimate: estimate, FilterError: nextError, Gain: gain}
}
