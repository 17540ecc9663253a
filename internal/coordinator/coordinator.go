// Package coordinator plans shard assignments, dispatches them over the
// queue, and drives failed shards through bounded retries. It never
// touches event data itself.
package coordinator

import (
	"context"
	"log"
	"time"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/internal/queue"
	"github.com/cartflow/cartflow/pkg/types"
)

// pollTimeout bounds each blocking report pop so the run loop can notice
// context cancellation.
const pollTimeout = 2 * time.Second

// RunSummary aggregates the final per-shard reports of one run.
type RunSummary struct {
	Shards        map[int]types.ShardReport
	TotalEvents   int64
	TotalSessions int64
	Succeeded     bool
	Elapsed       time.Duration
}

// Coordinator owns the assignment lifecycle for one run.
type Coordinator struct {
	queue      queue.Queue
	maxRetries int
}

// New creates a coordinator. maxRetries is how many times a failed shard
// is re-enqueued before the run is declared failed.
func New(q queue.Queue, maxRetries int) *Coordinator {
	return &Coordinator{queue: q, maxRetries: maxRetries}
}

// Run pushes all assignments and consumes reports until every shard
// reaches a terminal state. A failed shard with a retryable report is
// re-enqueued with an incremented attempt, up to maxRetries extra
// attempts. Run returns when all shards are terminal or ctx is done.
func (c *Coordinator) Run(ctx context.Context, assignments []types.ShardAssignment) (*RunSummary, error) {
	began := time.Now()

	summary := &RunSummary{
		Shards:    make(map[int]types.ShardReport, len(assignments)),
		Succeeded: true,
	}
	if len(assignments) == 0 {
		summary.Elapsed = time.Since(began)
		return summary, nil
	}

	pending := make(map[int]types.ShardAssignment, len(assignments))
	for _, a := range assignments {
		if err := c.queue.PushAssignment(ctx, &a); err != nil {
			return nil, err
		}
		pending[a.ShardID] = a
		log.Printf("coordinator: dispatched %s (%d events)", a, a.EventCount())
	}

	terminal := 0
	for terminal < len(assignments) {
		report, err := c.queue.PopReport(ctx, pollTimeout)
		if err != nil {
			return nil, err
		}
		if report == nil {
			continue
		}

		a, ok := pending[report.ShardID]
		if !ok {
			log.Printf("coordinator: ignoring report for unknown shard %d", report.ShardID)
			continue
		}
		// A stale report from a superseded attempt must not finalize the
		// shard; the retry is already in flight.
		if report.Attempt != a.Attempt {
			log.Printf("coordinator: ignoring stale report for shard %d (attempt %d, current %d)",
				report.ShardID, report.Attempt, a.Attempt)
			continue
		}

		switch report.Status {
		case types.ShardSucceeded:
			summary.Shards[report.ShardID] = *report
			delete(pending, report.ShardID)
			terminal++
			log.Printf("coordinator: shard %d succeeded (%d events, %d sessions, worker %s)",
				report.ShardID, report.EventsProcessed, report.SessionsEmitted, report.WorkerID)

		case types.ShardFailed:
			if a.Attempt <= c.maxRetries {
				retry := a
				retry.Attempt++
				if err := c.queue.PushAssignment(ctx, &retry); err != nil {
					return nil, err
				}
				pending[retry.ShardID] = retry
				log.Printf("coordinator: shard %d failed (%s), retrying as attempt %d",
					report.ShardID, report.Error, retry.Attempt)
				continue
			}
			summary.Shards[report.ShardID] = *report
			summary.Succeeded = false
			delete(pending, report.ShardID)
			terminal++
			log.Printf("coordinator: shard %d failed permanently after %d attempts: %s",
				report.ShardID, report.Attempt, report.Error)

		default:
			return nil, cferrors.NewCoordinationError(cferrors.CodeShardFailed,
				"unexpected report status "+string(report.Status), nil)
		}
	}

	for _, r := range summary.Shards {
		summary.TotalEvents += r.EventsProcessed
		summary.TotalSessions += r.SessionsEmitted
	}
	summary.Elapsed = time.Since(began)
	return summary, nil
}
