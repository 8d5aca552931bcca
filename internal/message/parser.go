package message

import (
	"encoding/json"
	"fmt"
)

// ParsePosition decodes and validates one vehicle-position message.
func ParsePosition(data []byte) (*VehiclePosition, error) {
	var pos VehiclePosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if pos.VehicleID == "" {
		return nil, ErrMissingVehicleID
	}
	if pos.TripID == "" {
		return nil, ErrMissingTripID
	}
	if pos.SegmentIndex < 0 {
		return nil, ErrBadSegmentIndex
	}
	return &pos, nil
}

// ParseObservation decodes and validates one completed-traversal message.
func ParseObservation(data []byte) (*SegmentObservation, error) {
	var obs SegmentObservation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if obs.VehicleID == "" {
		return nil, ErrMissingVehicleID
	}
	if obs.TripID == "" {
		return nil, ErrMissingTripID
	}
	if obs.SegmentIndex < 0 {
		return nil, ErrBadSegmentIndex
	}
	if obs.Kind != "travel" && obs.Kind != "dwell" {
		return nil, ErrBadObservationKind
	}
	return &obs, nil
}
