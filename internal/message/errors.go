package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal message JSON")
	ErrBadTimestamp        = errors.New("unparseable timestamp")
	ErrMissingVehicleID    = errors.New("message missing vehicle_id")
	ErrMissingTripID       = errors.New("message missing trip_id")
	ErrBadSegmentIndex     = errors.New("segment_index must be non-negative")
	ErrBadObservationKind  = errors.New(`observation kind must be "travel" or "dwell"`)
)
