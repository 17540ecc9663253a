package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartflow/cartflow/pkg/types"
)

// redisQueue connects to the Redis named by CARTFLOW_TEST_REDIS, or skips
// the test when the variable is unset.
func redisQueue(t *testing.T) *RedisQueue {
	t.Helper()

	addr := os.Getenv("CARTFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("CARTFLOW_TEST_REDIS not set")
	}

	// Unique prefix per test run so concurrent runs don't interfere.
	prefix := "cartflow-test-" + uuid.New().String()[:8]

	q, err := NewRedisQueue(context.Background(), addr, "", 0, prefix)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueueRoundTrip(t *testing.T) {
	q := redisQueue(t)
	ctx := context.Background()

	in := &types.ShardAssignment{
		ShardID:    0,
		InputURI:   "s3://bucket/events.json.gz",
		OutputURI:  "s3://bucket/out/shard=0",
		StartIndex: 0,
		EndIndex:   1000,
		Attempt:    1,
	}
	require.NoError(t, q.PushAssignment(ctx, in))

	out, err := q.PopAssignment(ctx, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)
}

func TestRedisQueuePopTimeout(t *testing.T) {
	q := redisQueue(t)

	a, err := q.PopAssignment(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestRedisQueueReportRoundTrip(t *testing.T) {
	q := redisQueue(t)
	ctx := context.Background()

	in := &types.ShardReport{
		ShardID:         3,
		Status:          types.ShardFailed,
		EventsProcessed: 12,
		Attempt:         2,
		WorkerID:        "worker-1",
		Error:           "disk full",
	}
	require.NoError(t, q.PushReport(ctx, in))

	out, err := q.PopReport(ctx, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)
}

func TestRedisQueueUnavailable(t *testing.T) {
	_, err := NewRedisQueue(context.Background(), "127.0.0.1:1", "", 0, "cartflow-test")
	assert.Error(t, err)
}
