package types

// SessionRecord is the immutable, finalized summary of one session's
// journey. It is written once to the session sink and never mutated.
// A session whose events are separated by more than the configured
// maximum gap produces multiple SessionRecords for the same SessionID.
type SessionRecord struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	Source     string `json:"source"`
	Device     string `json:"device"`
	Browser    string `json:"browser"`

	// StartTime and EndTime are epoch nanoseconds, UTC.
	StartTime       int64   `json:"session_start"`
	EndTime         int64   `json:"session_end"`
	DurationSeconds float64 `json:"session_duration_seconds"`

	EventCount int64 `json:"total_events"`

	// Journey is the comma-joined sequence of event kinds in arrival order.
	Journey string `json:"event_journey"`

	HasPurchase bool `json:"has_purchase"`
}
