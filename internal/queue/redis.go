package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/pkg/types"
)

// RedisQueue is the cross-process Queue backing coordinate and work
// modes. Items are JSON blobs in two Redis lists; LPUSH plus BRPOP gives
// FIFO delivery, and an item popped by a crashed worker is recovered by
// the coordinator's retry path, not by the queue.
type RedisQueue struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, addr, password string, db int, keyPrefix string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, cferrors.NewCoordinationError(cferrors.CodeQueueUnavailable,
			fmt.Sprintf("cannot reach redis at %s", addr), err)
	}

	return &RedisQueue{client: client, keyPrefix: keyPrefix}, nil
}

func (q *RedisQueue) assignmentsKey() string {
	return q.keyPrefix + ":assignments"
}

func (q *RedisQueue) reportsKey() string {
	return q.keyPrefix + ":reports"
}

// PushAssignment enqueues a shard assignment.
func (q *RedisQueue) PushAssignment(ctx context.Context, a *types.ShardAssignment) error {
	return q.push(ctx, q.assignmentsKey(), a)
}

// PopAssignment dequeues the next assignment, or (nil, nil) on timeout.
func (q *RedisQueue) PopAssignment(ctx context.Context, timeout time.Duration) (*types.ShardAssignment, error) {
	var a types.ShardAssignment
	ok, err := q.pop(ctx, q.assignmentsKey(), timeout, &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

// PushReport enqueues a shard report.
func (q *RedisQueue) PushReport(ctx context.Context, r *types.ShardReport) error {
	return q.push(ctx, q.reportsKey(), r)
}

// PopReport dequeues the next report, or (nil, nil) on timeout.
func (q *RedisQueue) PopReport(ctx context.Context, timeout time.Duration) (*types.ShardReport, error) {
	var r types.ShardReport
	ok, err := q.pop(ctx, q.reportsKey(), timeout, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (q *RedisQueue) push(ctx context.Context, key string, item interface{}) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return cferrors.NewInternalError("failed to marshal queue item", err)
	}
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return cferrors.NewCoordinationError(cferrors.CodeQueueUnavailable, "failed to push to "+key, err)
	}
	return nil
}

func (q *RedisQueue) pop(ctx context.Context, key string, timeout time.Duration, out interface{}) (bool, error) {
	res, err := q.client.BRPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, cferrors.NewCoordinationError(cferrors.CodeQueueUnavailable, "failed to pop from "+key, err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return false, cferrors.NewInternalError(fmt.Sprintf("unexpected BRPOP reply of length %d", len(res)), nil)
	}
	if err := json.Unmarshal([]byte(res[1]), out); err != nil {
		return false, cferrors.NewInternalError("failed to unmarshal queue item", err)
	}
	return true, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
