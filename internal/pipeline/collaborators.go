package pipeline

import "github.com/transitlens/transitlens/internal/message"

// ScheduleProvider supplies scheduled segment durations for position reports
// that arrive without their upcoming-segment enrichment. The usual source is
// the upstream feed itself; a provider is only consulted when that block is
// missing.
type ScheduleProvider interface {
	UpcomingSegments(tripID string, fromSegment int) []message.SegmentSchedule
}
