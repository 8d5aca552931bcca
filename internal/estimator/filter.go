// Package estimator contains the numeric prediction strategies: sample
// admission, bias adjustment, the recursive-least-squares dwell model, the
// Kalman-style blend and the ordered fallback chain that ties them together.
package estimator

import (
	"time"

	"github.com/transitlens/transitlens/internal/segment"
)

// Observation is one completed segment traversal, produced by the external
// arrival/departure detector. It is consumed once by the sample filter and
// never retained.
type Observation struct {
	Key            segment.Key
	DurationMillis int64
	// Signed schedule adherence at either endpoint, millis; nil when the
	// feed had no adherence information there.
	StartAdherenceMillis *int64
	EndAdherenceMillis   *int64
	// Headway to the preceding vehicle, millis; only meaningful for dwell
	// observations.
	HeadwayMillis *int64
	// WaitStop marks dwell at a layover/wait stop, where dwell time is
	// driven by the schedule rather than passenger activity.
	WaitStop   bool
	VehicleID  string
	ObservedAt time.Time
}

// RejectReason explains why the filter refused a sample. Reported, never
// raised: rejection is an expected, frequent outcome.
type RejectReason int

const (
	Accepted RejectReason = iota
	RejectNonPositiveDuration
	RejectDurationOutOfRange
	RejectAdherenceOutOfRange
	RejectHeadwayOutOfRange
	RejectWaitStop
)

func (r RejectReason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectNonPositiveDuration:
		return "non_positive_duration"
	case RejectDurationOutOfRange:
		return "duration_out_of_range"
	case RejectAdherenceOutOfRange:
		return "adherence_out_of_range"
	case RejectHeadwayOutOfRange:
		return "headway_out_of_range"
	case RejectWaitStop:
		return "wait_stop"
	default:
		return "unknown"
	}
}

// FilterBounds are the admission limits for one sample kind.
type FilterBounds struct {
	MinDurationMillis int64
	MaxDurationMillis int64
}

// SampleFilter decides which observed travel and dwell times are trustworthy
// enough to update the caches. It holds no mutable state and never touches
// the caches itself.
type SampleFilter struct {
	Travel FilterBounds
	Dwell  FilterBounds
	// Adherence window, millis. A sample whose endpoint adherence falls
	// outside [Min, Max] is rejected; a missing adherence value does not
	// itself reject.
	MinAdherenceMillis int64
	MaxAdherenceMillis int64
	// Headway limits applied to dwell samples that carry a headway.
	MinHeadwayMillis int64
	MaxHeadwayMillis int64
}

// DefaultSampleFilter mirrors the bounds transit operators run with in
// practice: travel 100ms-20min, dwell 0-2min, adherence +/-10min,
// headway 1s-1h.
func DefaultSampleFilter() SampleFilter {
	return SampleFilter{
		Travel:             FilterBounds{MinDurationMillis: 100, MaxDurationMillis: 20 * 60 * 1000},
		Dwell:              FilterBounds{MinDurationMillis: 0, MaxDurationMillis: 2 * 60 * 1000},
		MinAdherenceMillis: -10 * 60 * 1000,
		MaxAdherenceMillis: 10 * 60 * 1000,
		MinHeadwayMillis:   1000,
		MaxHeadwayMillis:   60 * 60 * 1000,
	}
}

// Check returns whether obs may update the caches, and the reason when not.
func (f SampleFilter) Check(obs Observation) (bool, RejectReason) {
	if obs.DurationMillis <= 0 && obs.Key.Kind == segment.TravelTime {
		return false, RejectNonPositiveDuration
	}
	if obs.DurationMillis < 0 {
		return false, RejectNonPositiveDuration
	}

	bounds := f.Travel
	if obs.Key.Kind == segment.DwellTime {
		bounds = f.Dwell
		if obs.WaitStop {
			return false, RejectWaitStop
		}
	}
	if obs.DurationMillis < bounds.MinDurationMillis || obs.DurationMillis > bounds.MaxDurationMillis {
		return false, RejectDurationOutOfRange
	}

	if !f.adherenceOK(obs.StartAdherenceMillis) || !f.adherenceOK(obs.EndAdherenceMillis) {
		return false, RejectAdherenceOutOfRange
	}

	if obs.Key.Kind == segment.DwellTime && obs.HeadwayMillis != nil {
		h := *obs.HeadwayMillis
		if h < f.MinHeadwayMillis || h > f.MaxHeadwayMillis {
			return false, RejectHeadwayOutOfRange
		}
	}

	return true, Accepted
}

func (f SampleFilter) adherenceOK(adherence *int64) bool {
	if adherence == nil {
		// Missing adherence at one endpoint is unconstrained.
		return true
	}
	return *adherence >= f.MinAdherenceMillis && *adherence <= f.MaxAdherenceMillis
}
