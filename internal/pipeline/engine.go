package pipeline

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/transitlens/transitlens/internal/config"
	"github.com/transitlens/transitlens/internal/estimator"
	"github.com/transitlens/transitlens/internal/history"
	"github.com/transitlens/transitlens/internal/message"
	"github.com/transitlens/transitlens/internal/segment"
)

// routedStats sends lookups to the unbucketed cache for schedule-based keys
// and to the time-of-day cache for bucketed ones.
type routedStats struct {
	scheduled *history.Sharded
	frequency *history.Frequency
}

func (r routedStats) Get(key segment.Key) (segment.Stat, bool) {
	if key.TimeBucket == segment.NoBucket {
		return r.scheduled.Get(key)
	}
	return r.frequency.Get(key)
}

// Engine owns the shared caches and turns parsed events into cache updates
// and predictions. It carries no per-call state; the pipeline invokes it from
// many workers concurrently and the caches do their own locking.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	filter estimator.SampleFilter
	bias   estimator.BiasAdjuster

	scheduled   *history.Sharded
	frequency   *history.Frequency
	volatile    *history.Volatile
	filterErrs  *history.FilterErrorCache
	dwellModels *estimator.DwellModelCache
	lastSeen    *history.LastTraversalCache

	predictor *estimator.Predictor
	schedules ScheduleProvider

	now func() time.Time
}

// SetScheduleProvider installs a fallback schedule source for positions that
// carry no upcoming-segment block. Must be called before the pipeline runs.
func (e *Engine) SetScheduleProvider(p ScheduleProvider) { e.schedules = p }

// NewEngine wires the caches and the fallback chain from configuration.
func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	return newEngineClock(cfg, logger, time.Now)
}

// newEngineClock injects the clock, for tests.
func newEngineClock(cfg *config.Config, logger *zap.Logger, now func() time.Time) *Engine {
	ttl := time.Duration(cfg.Prediction.TTLSeconds) * time.Second

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		filter:      filterFromConfig(cfg.Filter),
		bias:        biasFromConfig(cfg.Prediction.Bias),
		scheduled:   history.NewSharded(),
		frequency:   history.NewFrequency(cfg.Prediction.BucketSizeSeconds),
		volatile:    history.NewVolatileClock(ttl, now),
		filterErrs:  history.NewFilterErrorCache(cfg.Prediction.InitialFilterError),
		dwellModels: estimator.NewDwellModelCache(cfg.Prediction.RegressionLambda),
		lastSeen:    history.NewLastTraversalCache(),
		now:         now,
	}

	e.predictor = estimator.NewPredictor(
		estimator.PredictorConfig{
			MinSamples:         cfg.Prediction.MinSamples,
			KalmanMinSamples:   cfg.Prediction.KalmanMinSamples,
			FilterEpsilon:      cfg.Prediction.FilterEpsilon,
			InitialFilterError: cfg.Prediction.InitialFilterError,
		},
		routedStats{scheduled: e.scheduled, frequency: e.frequency},
		e.filterErrs,
		e.dwellModels,
		logger.Named("predictor"),
	)

	logger.Info("Engine initialized",
		zap.Int64("min_samples", cfg.Prediction.MinSamples),
		zap.Int64("kalman_min_samples", cfg.Prediction.KalmanMinSamples),
		zap.Int("bucket_size_seconds", cfg.Prediction.BucketSizeSeconds),
		zap.Duration("ttl", ttl),
		zap.String("bias_mode", cfg.Prediction.Bias.Mode),
	)
	return e
}

func filterFromConfig(cfg config.FilterConfig) estimator.SampleFilter {
	return estimator.SampleFilter{
		Travel: estimator.FilterBounds{
			MinDurationMillis: cfg.MinTravelMillis,
			MaxDurationMillis: cfg.MaxTravelMillis,
		},
		Dwell: estimator.FilterBounds{
			MinDurationMillis: cfg.MinDwellMillis,
			MaxDurationMillis: cfg.MaxDwellMillis,
		},
		MinAdherenceMillis: -cfg.AdherenceMillis,
		MaxAdherenceMillis: cfg.AdherenceMillis,
		MinHeadwayMillis:   cfg.MinHeadwayMillis,
		MaxHeadwayMillis:   cfg.MaxHeadwayMillis,
	}
}

func biasFromConfig(cfg config.Bias) estimator.BiasAdjuster {
	switch cfg.Mode {
	case "exponential":
		return estimator.ExponentialAdjuster{Base: cfg.Base, Sign: float64(cfg.Sign)}
	case "linear":
		return estimator.LinearAdjuster{Rate: cfg.Rate}
	default:
		return estimator.NopAdjuster{}
	}
}

// canceledKey flags a whole trip; segment index -1 never collides with a
// real stop path.
func canceledKey(tripID string) segment.Key {
	return segment.Key{TripID: tripID, SegmentIndex: -1, Kind: segment.TravelTime, TimeBucket: segment.NoBucket}
}

// statKey picks the bucketed or unbucketed key space for a trip depending on
// whether it runs on a fixed schedule.
func (e *Engine) statKey(tripID string, segmentIndex int, kind segment.Kind, noSchedule bool, secondsIntoDay int) segment.Key {
	if noSchedule {
		return segment.NewBucketedKey(tripID, segmentIndex, kind, secondsIntoDay, e.cfg.Prediction.BucketSizeSeconds)
	}
	return segment.NewKey(tripID, segmentIndex, kind)
}

// HandleObservation folds one completed traversal into the caches, or drops
// it with a reason when the sample filter refuses it.
func (e *Engine) HandleObservation(obs *message.SegmentObservation) {
	kind := segment.TravelTime
	if obs.Kind == "dwell" {
		kind = segment.DwellTime
	}
	key := segment.NewKey(obs.TripID, obs.SegmentIndex, kind)

	sample := estimator.Observation{
		Key:                  key,
		DurationMillis:       obs.DurationMillis,
		StartAdherenceMillis: obs.StartAdherenceMillis,
		EndAdherenceMillis:   obs.EndAdherenceMillis,
		HeadwayMillis:        obs.HeadwayMillis,
		WaitStop:             obs.WaitStop,
		VehicleID:            obs.VehicleID,
		ObservedAt:           obs.ObservedAt.Time,
	}

	ok, reason := e.filter.Check(sample)
	if !ok {
		samplesRejectedTotal.WithLabelValues(reason.String()).Inc()
		e.logger.Debug("Sample rejected",
			zap.String("segment", key.String()),
			zap.String("reason", reason.String()),
			zap.Int64("duration_ms", obs.DurationMillis),
		)
		return
	}
	samplesAcceptedTotal.WithLabelValues(kind.String()).Inc()

	value := float64(obs.DurationMillis)
	if obs.NoSchedule {
		e.frequency.ObserveAt(key, obs.SecondsIntoDay, value)
	} else {
		e.scheduled.Observe(key, value)
	}

	switch kind {
	case segment.TravelTime:
		e.lastSeen.Put(key, history.Traversal{
			VehicleID:      obs.VehicleID,
			DurationMillis: value,
			ObservedAt:     obs.ObservedAt.Time,
		})
	case segment.DwellTime:
		if obs.HeadwayMillis != nil {
			e.dwellModels.AddSample(key, float64(*obs.HeadwayMillis), value)
		}
	}
}

// HandlePosition generates one prediction per upcoming stop for a vehicle
// position report. A report for a canceled trip produces nothing and flags
// the trip; the flag ages out of the TTL cache once reports stop marking it.
func (e *Engine) HandlePosition(pos *message.VehiclePosition) []message.Prediction {
	now := e.now()

	if pos.Canceled {
		e.volatile.Observe(canceledKey(pos.TripID), 1)
		canceledSkipsTotal.Inc()
		e.logger.Debug("Skipping canceled trip", zap.String("trip_id", pos.TripID))
		return nil
	}
	if _, flagged := e.volatile.Get(canceledKey(pos.TripID)); flagged {
		canceledSkipsTotal.Inc()
		return nil
	}

	upcoming := pos.Upcoming
	if len(upcoming) == 0 && e.schedules != nil {
		upcoming = e.schedules.UpcomingSegments(pos.TripID, pos.SegmentIndex)
	}

	preds := make([]message.Prediction, 0, len(upcoming))
	cumulative := 0.0
	low := false

	for i, seg := range upcoming {
		travelKey := e.statKey(pos.TripID, seg.SegmentIndex, segment.TravelTime, pos.NoSchedule, pos.SecondsIntoDay)
		plainKey := segment.NewKey(pos.TripID, seg.SegmentIndex, segment.TravelTime)

		req := estimator.Request{
			Key:             travelKey,
			VehicleID:       pos.VehicleID,
			ScheduledMillis: float64(seg.ScheduledTravelMillis),
		}
		if t, ok := e.lastSeen.GetPreceding(plainKey, pos.VehicleID, now); ok {
			v := t.DurationMillis
			req.LastVehicleMillis = &v
		}

		res := e.predictor.PredictTravelTime(req)
		raw := res.Millis
		if i == 0 && seg.SegmentIndex == pos.SegmentIndex {
			length := seg.LengthMeters
			if length <= 0 {
				length = pos.SegmentLengthMeter
			}
			raw = estimator.ProrateRemaining(raw, pos.DistanceAlongMeter, length)
		}
		adjusted := e.bias.Adjust(raw)
		if adjusted < 0 {
			adjusted = 0
		}
		cumulative += adjusted
		low = low || res.LowConfidence

		pred := message.Prediction{
			VehicleID:     pos.VehicleID,
			TripID:        pos.TripID,
			RouteID:       pos.RouteID,
			SegmentIndex:  seg.SegmentIndex,
			GeneratedAt:   message.EventTime{Time: now},
			EtaMillis:     int64(math.Round(cumulative)),
			TravelTier:    string(res.Tier),
			LowConfidence: low,
		}

		// Dwell at the arrival stop delays every later ETA but not this one.
		if i < len(upcoming)-1 {
			dwellKey := e.statKey(pos.TripID, seg.SegmentIndex, segment.DwellTime, pos.NoSchedule, pos.SecondsIntoDay)
			dreq := estimator.Request{
				Key:             dwellKey,
				VehicleID:       pos.VehicleID,
				ScheduledMillis: float64(seg.ScheduledDwellMillis),
			}
			if h, ok := e.estimatedHeadway(plainKey, pos.VehicleID, now, cumulative); ok {
				dreq.HeadwayMillis = &h
			}
			dres := e.predictor.PredictDwellTime(dreq)
			cumulative += dres.Millis
			pred.DwellTier = string(dres.Tier)
			dwellTierTotal.WithLabelValues(string(dres.Tier)).Inc()
			low = low || dres.LowConfidence
		}

		predictionsTotal.WithLabelValues(string(res.Tier)).Inc()
		if pred.LowConfidence {
			lowConfidenceTotal.Inc()
		}
		preds = append(preds, pred)
	}

	return preds
}

// estimatedHeadway projects the gap to the vehicle ahead at the moment this
// vehicle will reach the segment: elapsed time since the preceding traversal
// plus our own predicted time to get there. A vehicle's own earlier crossing,
// or one from another service day, is not a predecessor.
func (e *Engine) estimatedHeadway(plainKey segment.Key, vehicleID string, now time.Time, cumulativeMillis float64) (float64, bool) {
	t, ok := e.lastSeen.GetPreceding(plainKey, vehicleID, now)
	if !ok {
		return 0, false
	}
	gap := float64(now.Sub(t.ObservedAt).Milliseconds()) + cumulativeMillis
	if gap <= 0 {
		return 0, false
	}
	return gap, true
}

// DumpScheduled copies the scheduled-service statistics keyed by segment
// string, for the debug endpoint.
func (e *Engine) DumpScheduled() map[string]segment.Stat {
	snap := e.scheduled.Snapshot()
	out := make(map[string]segment.Stat, len(snap))
	for k, v := range snap {
		out[k.String()] = v
	}
	return out
}

// EvictIdle runs one TTL sweep and refreshes the cache size gauges.
// Returns the number of entries removed.
func (e *Engine) EvictIdle(now time.Time) int {
	evicted := e.volatile.EvictIdle(now)
	if evicted > 0 {
		evictionsTotal.Add(float64(evicted))
	}

	cacheEntries.WithLabelValues("scheduled").Set(float64(e.scheduled.Len()))
	cacheEntries.WithLabelValues("frequency").Set(float64(e.frequency.Len()))
	cacheEntries.WithLabelValues("volatile").Set(float64(e.volatile.Len()))
	cacheEntries.WithLabelValues("dwell_models").Set(float64(e.dwellModels.Len()))

	return evicted
}
