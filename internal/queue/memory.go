package queue

import (
	"context"
	"time"

	"github.com/cartflow/cartflow/pkg/types"
)

// MemoryQueue is the in-process Queue used by local mode, where the
// coordinator and workers share one process. Channel capacity bounds how
// many items can sit unconsumed.
type MemoryQueue struct {
	assignments chan *types.ShardAssignment
	reports     chan *types.ShardReport
}

// NewMemoryQueue creates an in-process queue with the given buffer size.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		assignments: make(chan *types.ShardAssignment, capacity),
		reports:     make(chan *types.ShardReport, capacity),
	}
}

// PushAssignment enqueues a shard assignment.
func (q *MemoryQueue) PushAssignment(ctx context.Context, a *types.ShardAssignment) error {
	select {
	case q.assignments <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PopAssignment dequeues the next assignment, or (nil, nil) on timeout.
func (q *MemoryQueue) PopAssignment(ctx context.Context, timeout time.Duration) (*types.ShardAssignment, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-q.assignments:
		return a, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PushReport enqueues a shard report.
func (q *MemoryQueue) PushReport(ctx context.Context, r *types.ShardReport) error {
	select {
	case q.reports <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PopReport dequeues the next report, or (nil, nil) on timeout.
func (q *MemoryQueue) PopReport(ctx context.Context, timeout time.Duration) (*types.ShardReport, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-q.reports:
		return r, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close is a no-op for the in-process queue.
func (q *MemoryQueue) Close() error {
	return nil
}
