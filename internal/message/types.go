// Package message defines the wire format of the two event streams the
// engine consumes: vehicle positions (already map-matched by the upstream
// ingest service) and completed segment traversals from the
// arrival/departure detector.
package message

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventTime unmarshals from either an RFC3339-style string or a unix
// millisecond number, since upstream feeds disagree on the encoding.
type EventTime struct {
	time.Time
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, format := range timeFormats {
			if parsed, err := time.Parse(format, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return ErrBadTimestamp
	}
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	t.Time = time.UnixMilli(millis)
	return nil
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// SegmentSchedule carries the scheduled durations for one upcoming segment,
// enriched into the feed by the upstream schedule provider.
type SegmentSchedule struct {
	SegmentIndex          int     `json:"segment_index"`
	ScheduledTravelMillis int64   `json:"scheduled_travel_ms"`
	ScheduledDwellMillis  int64   `json:"scheduled_dwell_ms"`
	LengthMeters          float64 `json:"length_m,omitempty"`
}

// VehiclePosition is one map-matched AVL report.
type VehiclePosition struct {
	VehicleID string    `json:"vehicle_id"`
	TripID    string    `json:"trip_id"`
	RouteID   string    `json:"route_id,omitempty"`
	BlockID   string    `json:"block_id,omitempty"`
	Timestamp EventTime `json:"timestamp"`
	// NoSchedule marks frequency-based service, which uses the
	// time-of-day-bucketed history.
	NoSchedule bool `json:"no_schedule,omitempty"`
	Canceled   bool `json:"canceled,omitempty"`

	SegmentIndex       int     `json:"segment_index"`
	DistanceAlongMeter float64 `json:"distance_along_m"`
	SegmentLengthMeter float64 `json:"segment_length_m"`
	SecondsIntoDay     int     `json:"seconds_into_day"`

	// Upcoming lists the not-yet-visited segments of the trip, current one
	// first, with their scheduled durations.
	Upcoming []SegmentSchedule `json:"upcoming"`
}

// SegmentObservation is one completed traversal: either the travel time
// between two stops or the dwell time at one stop.
type SegmentObservation struct {
	VehicleID    string    `json:"vehicle_id"`
	TripID       string    `json:"trip_id"`
	SegmentIndex int       `json:"segment_index"`
	Kind         string    `json:"kind"` // "travel" or "dwell"
	ObservedAt   EventTime `json:"observed_at"`

	DurationMillis       int64  `json:"duration_ms"`
	StartAdherenceMillis *int64 `json:"start_adherence_ms,omitempty"`
	EndAdherenceMillis   *int64 `json:"end_adherence_ms,omitempty"`
	HeadwayMillis        *int64 `json:"headway_ms,omitempty"`
	WaitStop             bool   `json:"wait_stop,omitempty"`
	NoSchedule           bool   `json:"no_schedule,omitempty"`
	SecondsIntoDay       int    `json:"seconds_into_day"`
}

// Prediction is the engine's output record for one stop.
type Prediction struct {
	VehicleID     string    `json:"vehicle_id"`
	TripID        string    `json:"trip_id"`
	RouteID       string    `json:"route_id,omitempty"`
	SegmentIndex  int       `json:"segment_index"`
	GeneratedAt   EventTime `json:"generated_at"`
	EtaMillis     int64     `json:"eta_ms"`
	TravelTier    string    `json:"travel_tier"`
	DwellTier     string    `json:"dwell_tier,omitempty"`
	LowConfidence bool      `json:"low_confidence,omitempty"`
}
