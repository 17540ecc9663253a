package types

import "fmt"

// ShardStatus is the coordinator-visible lifecycle state of one shard.
type ShardStatus string

const (
	ShardPending   ShardStatus = "pending"
	ShardRunning   ShardStatus = "running"
	ShardSucceeded ShardStatus = "succeeded"
	ShardFailed    ShardStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s ShardStatus) Terminal() bool {
	return s == ShardSucceeded || s == ShardFailed
}

// ShardAssignment describes one contiguous, disjoint sub-range of the
// logical input assigned to one worker. Ranges are half-open: the worker
// processes events with stream index in [StartIndex, EndIndex).
type ShardAssignment struct {
	ShardID   int    `json:"shard_id"`
	InputURI  string `json:"input_uri"`
	OutputURI string `json:"output_uri"`

	StartIndex int64 `json:"start_index"`
	EndIndex   int64 `json:"end_index"`

	// Attempt starts at 1 and increments on each coordinator retry.
	Attempt int `json:"attempt"`
}

// EventCount returns the number of events in the assigned range.
func (a ShardAssignment) EventCount() int64 {
	return a.EndIndex - a.StartIndex
}

func (a ShardAssignment) String() string {
	return fmt.Sprintf("shard %d [%d,%d) attempt %d", a.ShardID, a.StartIndex, a.EndIndex, a.Attempt)
}

// ShardReport is a worker's completion report for one shard attempt.
type ShardReport struct {
	ShardID         int         `json:"shard_id"`
	Status          ShardStatus `json:"status"`
	EventsProcessed int64       `json:"events_processed"`
	SessionsEmitted int64       `json:"sessions_emitted"`
	Attempt         int         `json:"attempt"`
	WorkerID        string      `json:"worker_id"`
	Error           string      `json:"error,omitempty"`
}
