package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExponentialAdjusterZero(t *testing.T) {
	a := ExponentialAdjuster{Base: 1.1, Sign: 1}
	assert.Equal(t, 0.0, a.Adjust(0))
}

func TestLinearAdjusterZero(t *testing.T) {
	a := LinearAdjuster{Rate: 0.5}
	assert.Equal(t, 0.0, a.Adjust(0))
}

func TestExponentialAdjusterGrowsWithHorizon(t *testing.T) {
	a := ExponentialAdjuster{Base: 1.1, Sign: 1}

	// One minute horizon: percentage = 1.1^1 - 1 = 0.1.
	oneMinute := 60000.0
	assert.InDelta(t, oneMinute*(1+0.1/100), a.Adjust(oneMinute), 1e-6)

	// The relative correction compounds as the horizon stretches.
	tenMinutes := 600000.0
	relOne := a.Adjust(oneMinute)/oneMinute - 1
	relTen := a.Adjust(tenMinutes)/tenMinutes - 1
	assert.Greater(t, relTen, relOne)
}

func TestExponentialAdjusterNegativeSignShrinks(t *testing.T) {
	a := ExponentialAdjuster{Base: 1.1, Sign: -1}
	raw := 300000.0
	assert.Less(t, a.Adjust(raw), raw)
}

func TestLinearAdjusterKnownValue(t *testing.T) {
	a := LinearAdjuster{Rate: 0.0006}
	raw := 600000.0
	// percentage = (600000/100) * 0.0006 = 3.6
	expected := raw + (3.6/100)*raw
	assert.InDelta(t, expected, a.Adjust(raw), 1e-6)
}

func TestAdjustersPassThroughNonFinite(t *testing.T) {
	exp := ExponentialAdjuster{Base: 1.1, Sign: 1}
	lin := LinearAdjuster{Rate: 0.5}

	assert.True(t, math.IsNaN(exp.Adjust(math.NaN())))
	assert.True(t, math.IsNaN(lin.Adjust(math.NaN())))
	assert.True(t, math.IsInf(exp.Adjust(math.Inf(1)), 1))
	assert.True(t, math.IsInf(lin.Adjust(math.Inf(1)), 1))
}

func TestNopAdjuster(t *testing.T) {
	assert.Equal(t, 1234.0, NopAdjuster{}.Adjust(1234))
}
