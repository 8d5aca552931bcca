package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transitlens/transitlens/internal/segment"
)

func histStat(values ...float64) segment.Stat {
	var s segment.Stat
	for _, v := range values {
		s = s.Observe(v)
	}
	return s
}

func TestBlendGainBounds(t *testing.T) {
	hist := histStat(380, 420, 400)
	for _, prior := range []float64{0, 0.5, 1, 10, 100, 1e6} {
		res := Blend(400, hist, prior, 0.1)
		assert.GreaterOrEqual(t, res.Gain, 0.0, "prior=%v", prior)
		assert.LessOrEqual(t, res.Gain, 1.0, "prior=%v", prior)
	}
}

func TestBlendConfidentFilterTracksHistory(t *testing.T) {
	hist := histStat(380, 420, 400)
	// Zero prior error: the filter fully trusts its history.
	res := Blend(300, hist, 0, 0.1)
	assert.InDelta(t, hist.Mean, res.Estimate, 1e-9)
	assert.Zero(t, res.Gain)
}

func TestBlendNoisyFilterFollowsLastVehicle(t *testing.T) {
	hist := histStat(380, 420, 400)
	// Huge prior error: gain approaches 1 and the estimate approaches the
	// last vehicle's observation.
	res := Blend(300, hist, 1e9, 0.1)
	assert.InDelta(t, 300, res.Estimate, 1.0)
}

func TestBlendEstimateBetweenInputs(t *testing.T) {
	hist := histStat(380, 420, 400)
	res := Blend(300, hist, 100, 0.1)
	assert.Greater(t, res.Estimate, 300.0)
	assert.Less(t, res.Estimate, hist.Mean)
}

func TestBlendErrorShrinksAndFloors(t *testing.T) {
	hist := histStat(380, 420, 400)

	prior := 100.0
	res := Blend(400, hist, prior, 0.5)
	assert.Less(t, res.FilterError, prior)

	// Each pass shrinks the error harmonically; against a near-constant
	// history it collapses onto the epsilon floor and never below it.
	tight := histStat(400, 400.2, 399.8)
	res = Blend(400, tight, prior, 0.5)
	for i := 0; i < 5; i++ {
		res = Blend(400, tight, res.FilterError, 0.5)
		assert.GreaterOrEqual(t, res.FilterError, 0.5)
	}
	assert.Equal(t, 0.5, res.FilterError)
}

func TestBlendDegenerateHistory(t *testing.T) {
	// All-equal history has zero variance; with a fresh filter the blend
	// must still produce a usable value.
	hist := histStat(400, 400, 400)
	res := Blend(350, hist, 0, 0.1)
	assert.Equal(t, 350.0, res.Estimate)

	res = Blend(350, hist, 100, 0.1)
	assert.Equal(t, 350.0, res.Estimate)
	assert.Equal(t, 1.0, res.Gain)
}

func TestBlendNegativePriorTreatedAsZero(t *testing.T) {
	hist := histStat(380, 420, 400)
	res := Blend(300, hist, -5, 0.1)
	assert.InDelta(t, hist.Mean, res.Estimate, 1e-9)
	assert.GreaterOrEqual(t, res.FilterError, 0.1)
}
