package partition

import (
	"github.com/cartflow/cartflow/pkg/types"
)

// StatsTracker tracks min/max statistics for pruning columns during a
// partition build.
type StatsTracker struct {
	rowCount int64

	minEventTime *int64
	maxEventTime *int64

	minSessionID *string
	maxSessionID *string
}

// NewStatsTracker creates a new statistics tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// Update updates statistics with a new event.
func (s *StatsTracker) Update(e *types.AnnotatedEvent) {
	s.rowCount++

	if s.minEventTime == nil || e.Timestamp < *s.minEventTime {
		t := e.Timestamp
		s.minEventTime = &t
	}
	if s.maxEventTime == nil || e.Timestamp > *s.maxEventTime {
		t := e.Timestamp
		s.maxEventTime = &t
	}

	// Lexicographic comparison
	if s.minSessionID == nil || e.SessionID < *s.minSessionID {
		id := e.SessionID
		s.minSessionID = &id
	}
	if s.maxSessionID == nil || e.SessionID > *s.maxSessionID {
		id := e.SessionID
		s.maxSessionID = &id
	}
}

// RowCount returns the number of events tracked.
func (s *StatsTracker) RowCount() int64 {
	return s.rowCount
}

// MinEventTime returns the minimum event_time value.
func (s *StatsTracker) MinEventTime() *int64 {
	return s.minEventTime
}

// MaxEventTime returns the maximum event_time value.
func (s *StatsTracker) MaxEventTime() *int64 {
	return s.maxEventTime
}

// MinSessionID returns the minimum session_id value.
func (s *StatsTracker) MinSessionID() *string {
	return s.minSessionID
}

// MaxSessionID returns the maximum session_id value.
func (s *StatsTracker) MaxSessionID() *string {
	return s.maxSessionID
}
