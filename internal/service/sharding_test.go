package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/redis"
	"github.com/worksphere/billing/internal/testutil"
)

func TestAssignShards(t *testing.T) {
	ids := []string{"t5", "t1", "t3", "", "t2", "t4", "t1"}

	a, err := AssignShards(ids, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Count())
	assert.Equal(t, []string{"t1", "t3", "t5"}, a.Tenants(0))
	assert.Equal(t, []string{"t2", "t4"}, a.Tenants(1))
	assert.Nil(t, a.Tenants(2))

	shard, ok := a.ShardOf("t4")
	assert.True(t, ok)
	assert.Equal(t, 1, shard)
	_, ok = a.ShardOf("missing")
	assert.False(t, ok)

	// input order does not matter
	b, err := AssignShards([]string{"t4", "t3", "t2", "t1", "t5"}, 2)
	require.NoError(t, err)
	assert.Equal(t, a.Tenants(0), b.Tenants(0))
	assert.Equal(t, a.Tenants(1), b.Tenants(1))

	// callers cannot mutate the assignment through Tenants
	got := a.Tenants(0)
	got[0] = "changed"
	assert.Equal(t, "t1", a.Tenants(0)[0])
}

func TestAssignShards_EveryTenantExactlyOnce(t *testing.T) {
	ids := make([]string, 0, 101)
	for i := 0; i < 101; i++ {
		ids = append(ids, fmt.Sprintf("tenant_%03d", i))
	}
	a, err := AssignShards(ids, 7)
	require.NoError(t, err)

	seen := map[string]int{}
	for shard := 0; shard < a.Count(); shard++ {
		n := len(a.Tenants(shard))
		assert.True(t, n == 14 || n == 15, "shard %d has %d tenants", shard, n)
		for _, id := range a.Tenants(shard) {
			seen[id]++
		}
	}
	assert.Len(t, seen, 101)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestAssignShards_MoreShardsThanTenants(t *testing.T) {
	a, err := AssignShards([]string{"only"}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Count())
	assert.Equal(t, []string{"only"}, a.Tenants(0))
	assert.Empty(t, a.Tenants(3))
}

func TestAssignShards_InvalidCount(t *testing.T) {
	_, err := AssignShards([]string{"t1"}, 0)
	assert.True(t, ierr.IsValidation(err))
}

func testProcessedTracker(t *testing.T, tracker ProcessedTracker) {
	ctx := context.Background()

	done, err := tracker.IsProcessed(ctx, "run_a", "t1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tracker.MarkProcessed(ctx, "run_a", "t1"))
	require.NoError(t, tracker.MarkProcessed(ctx, "run_a", "t1"))

	done, err = tracker.IsProcessed(ctx, "run_a", "t1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = tracker.IsProcessed(ctx, "run_b", "t1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tracker.Reset(ctx, "run_a"))
	done, err = tracker.IsProcessed(ctx, "run_a", "t1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMemoryProcessedTracker(t *testing.T) {
	testProcessedTracker(t, NewMemoryProcessedTracker())
}

func TestRedisProcessedTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tracker := NewRedisProcessedTracker(redis.NewFromRedis(rdb, testutil.NewTestLogger()))
	testProcessedTracker(t, tracker)

	require.NoError(t, tracker.MarkProcessed(context.Background(), "run_ttl", "t1"))
	assert.Equal(t, processedTTL, mr.TTL(processedKey("run_ttl")))
}
