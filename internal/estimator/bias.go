package estimator

import "math"

// BiasAdjuster corrects a raw predicted duration for the systematic error
// that grows with forecast horizon. Implementations are pure functions of
// the raw value.
type BiasAdjuster interface {
	Adjust(rawMillis float64) float64
}

// NopAdjuster leaves predictions unchanged.
type NopAdjuster struct{}

func (NopAdjuster) Adjust(rawMillis float64) float64 { return rawMillis }

// ExponentialAdjuster models error that grows multiplicatively with the
// forecast horizon: percentage = base^horizonMinutes - 1, applied with the
// configured sign.
type ExponentialAdjuster struct {
	Base float64
	// Sign is +1 to stretch predictions or -1 to shrink them.
	Sign float64
}

func (a ExponentialAdjuster) Adjust(rawMillis float64) float64 {
	if !isFinite(rawMillis) {
		return rawMillis
	}
	horizonMinutes := rawMillis / 60000.0
	percentage := math.Pow(a.Base, horizonMinutes) - 1
	return rawMillis + a.Sign*(percentage/100.0)*rawMillis
}

// LinearAdjuster applies a correction proportional to the raw prediction:
// percentage = (raw/100) * rate.
type LinearAdjuster struct {
	Rate float64
}

func (a LinearAdjuster) Adjust(rawMillis float64) float64 {
	if !isFinite(rawMillis) {
		return rawMillis
	}
	percentage := (rawMillis / 100.0) * a.Rate
	return rawMillis + (percentage/100.0)*rawMillis
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
