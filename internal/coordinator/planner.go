package coordinator

import (
	"fmt"

	"github.com/cartflow/cartflow/pkg/types"
)

// PlanShards splits total events into shardCount contiguous, disjoint
// half-open ranges covering the whole input. The remainder goes to the
// last shard. A total smaller than shardCount yields fewer, non-empty
// shards.
func PlanShards(total int64, shardCount int, inputURI, outputURI string) ([]types.ShardAssignment, error) {
	if total < 0 {
		return nil, fmt.Errorf("coordinator: negative event total %d", total)
	}
	if shardCount < 1 {
		return nil, fmt.Errorf("coordinator: shard count must be >= 1, got %d", shardCount)
	}
	if total == 0 {
		return nil, nil
	}

	if int64(shardCount) > total {
		shardCount = int(total)
	}

	per := total / int64(shardCount)
	assignments := make([]types.ShardAssignment, 0, shardCount)

	for i := 0; i < shardCount; i++ {
		start := int64(i) * per
		end := start + per
		if i == shardCount-1 {
			end = total
		}
		assignments = append(assignments, types.ShardAssignment{
			ShardID:    i,
			InputURI:   inputURI,
			OutputURI:  fmt.Sprintf("%s/shard=%d", outputURI, i),
			StartIndex: start,
			EndIndex:   end,
			Attempt:    1,
		})
	}

	return assignments, nil
}
