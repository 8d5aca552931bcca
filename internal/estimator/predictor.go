package estimator

import (
	"go.uber.org/zap"

	"github.com/transitlens/transitlens/internal/segment"
)

// Stats is the slice of the statistics cache the predictor consumes.
type Stats interface {
	Get(key segment.Key) (segment.Stat, bool)
}

// ErrorStore carries the Kalman filter error between successive predictions
// on a segment.
type ErrorStore interface {
	Get(key segment.Key) (value float64, seen bool)
	Put(key segment.Key, value float64)
}

// Tier names the strategy that produced a prediction, for observability and
// tests. Selection is deterministic given cache state and inputs.
type Tier string

const (
	TierRegression        Tier = "regression"
	TierHistoricalAverage Tier = "historical_average"
	TierKalman            Tier = "kalman"
	TierLastVehicle       Tier = "last_vehicle"
	TierSchedule          Tier = "schedule"
)

// Request asks for one segment's travel or dwell prediction.
type Request struct {
	Key       segment.Key
	VehicleID string
	// LastVehicleMillis is the preceding vehicle's observed duration for
	// this exact segment today, when one exists.
	LastVehicleMillis *float64
	// HeadwayMillis feeds the dwell regression; ignored for travel time.
	HeadwayMillis *float64
	// ScheduledMillis is the GTFS-scheduled duration, always available.
	ScheduledMillis float64
}

// Result is a prediction with its provenance.
type Result struct {
	Millis float64
	Tier   Tier
	// LowConfidence marks predictions that fell through every estimator to
	// the schedule. Consumers render these distinctly; they are never
	// withheld.
	LowConfidence bool
}

// PredictorConfig tunes the fallback chain.
type PredictorConfig struct {
	// MinSamples a historical statistic needs before its mean is trusted.
	MinSamples int64
	// KalmanMinSamples is the history depth the blend tier requires;
	// variance is undefined below two.
	KalmanMinSamples int64
	// FilterEpsilon floors the propagated filter error.
	FilterEpsilon float64
	// InitialFilterError seeds segments the filter has not visited.
	InitialFilterError float64
}

// Predictor runs the ordered fallback chain for one segment at a time:
// historical average, Kalman blend, last vehicle, schedule — with the dwell
// regression consulted first for dwell requests that carry a headway.
// Collaborating caches are injected; the predictor itself is stateless.
type Predictor struct {
	cfg    PredictorConfig
	stats  Stats
	errors ErrorStore
	dwell  *DwellModelCache
	logger *zap.Logger
}

func NewPredictor(cfg PredictorConfig, stats Stats, errors ErrorStore, dwell *DwellModelCache, logger *zap.Logger) *Predictor {
	if cfg.KalmanMinSamples < 2 {
		cfg.KalmanMinSamples = 2
	}
	return &Predictor{cfg: cfg, stats: stats, errors: errors, dwell: dwell, logger: logger}
}

// PredictTravelTime returns the travel-time prediction for req's segment.
func (p *Predictor) PredictTravelTime(req Request) Result {
	if res, ok := p.fromHistoricalAverage(req); ok {
		return res
	}
	if res, ok := p.fromKalman(req); ok {
		return res
	}
	if res, ok := p.fromLastVehicle(req); ok {
		return res
	}
	return p.fromSchedule(req)
}

// PredictDwellTime returns the dwell-time prediction for req's segment.
// Results are clamped to zero; a tier computing a negative dwell is skipped.
func (p *Predictor) PredictDwellTime(req Request) Result {
	if res, ok := p.fromRegression(req); ok {
		return res
	}
	if res, ok := p.fromHistoricalAverage(req); ok {
		return res
	}
	if res, ok := p.fromKalman(req); ok {
		return res
	}
	if res, ok := p.fromLastVehicle(req); ok {
		return res
	}
	res := p.fromSchedule(req)
	if res.Millis < 0 {
		res.Millis = 0
	}
	return res
}

func (p *Predictor) fromRegression(req Request) (Result, bool) {
	if p.dwell == nil || req.HeadwayMillis == nil {
		return Result{}, false
	}
	value, ok := p.dwell.Predict(req.Key, *req.HeadwayMillis)
	if !ok {
		return Result{}, false
	}
	if !p.usable(value, TierRegression, req.Key) {
		return Result{}, false
	}
	return Result{Millis: value, Tier: TierRegression}, true
}

func (p *Predictor) fromHistoricalAverage(req Request) (Result, bool) {
	stat, ok := p.stats.Get(req.Key)
	if !ok || stat.Count < p.cfg.MinSamples {
		return Result{}, false
	}
	if !p.usable(stat.Mean, TierHistoricalAverage, req.Key) {
		return Result{}, false
	}
	return Result{Millis: stat.Mean, Tier: TierHistoricalAverage}, true
}

func (p *Predictor) fromKalman(req Request) (Result, bool) {
	if req.LastVehicleMillis == nil {
		return Result{}, false
	}
	stat, ok := p.stats.Get(req.Key)
	if !ok || stat.Count < p.cfg.KalmanMinSamples {
		return Result{}, false
	}

	prior, seen := p.errors.Get(req.Key)
	if !seen {
		prior = p.cfg.InitialFilterError
	}

	blend := Blend(*req.LastVehicleMillis, stat, prior, p.cfg.FilterEpsilon)
	if !p.usable(blend.Estimate, TierKalman, req.Key) {
		return Result{}, false
	}

	p.errors.Put(req.Key, blend.FilterError)
	return Result{Millis: blend.Estimate, Tier: TierKalman}, true
}

func (p *Predictor) fromLastVehicle(req Request) (Result, bool) {
	if req.LastVehicleMillis == nil {
		return Result{}, false
	}
	if !p.usable(*req.LastVehicleMillis, TierLastVehicle, req.Key) {
		return Result{}, false
	}
	return Result{Millis: *req.LastVehicleMillis, Tier: TierLastVehicle}, true
}

func (p *Predictor) fromSchedule(req Request) Result {
	return Result{Millis: req.ScheduledMillis, Tier: TierSchedule, LowConfidence: true}
}

// usable rejects negative and non-finite values so a numeric anomaly in one
// tier falls through to the next instead of propagating.
func (p *Predictor) usable(value float64, tier Tier, key segment.Key) bool {
	if isFinite(value) && value >= 0 {
		return true
	}
	if p.logger != nil {
		p.logger.Warn("Discarding anomalous estimate, falling through",
			zap.String("tier", string(tier)),
			zap.String("segment", key.String()),
			zap.Float64("value", value),
		)
	}
	return false
}

// ProrateRemaining scales a whole-segment prediction down to the remaining
// part of the segment for a vehicle already partway along it.
func ProrateRemaining(fullMillis, distanceAlong, segmentLength float64) float64 {
	if segmentLength <= 0 || distanceAlong <= 0 {
		return fullMillis
	}
	if distanceAlong >= segmentLength {
		return 0
	}
	return fullMillis * (segmentLength - distanceAlong) / segmentLength
}
