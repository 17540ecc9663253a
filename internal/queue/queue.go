// Package queue provides the durable FIFO transport between the shard
// coordinator and workers. Assignments flow one way, reports the other;
// neither side ever talks to the other directly.
package queue

import (
	"context"
	"time"

	"github.com/cartflow/cartflow/pkg/types"
)

// Queue carries shard assignments to workers and shard reports back to
// the coordinator. Pop operations block up to timeout and return
// (nil, nil) when nothing arrived, so callers can interleave polling with
// shutdown checks.
type Queue interface {
	PushAssignment(ctx context.Context, a *types.ShardAssignment) error
	PopAssignment(ctx context.Context, timeout time.Duration) (*types.ShardAssignment, error)

	PushReport(ctx context.Context, r *types.ShardReport) error
	PopReport(ctx context.Context, timeout time.Duration) (*types.ShardReport, error)

	Close() error
}
