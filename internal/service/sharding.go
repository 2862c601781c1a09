package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/redis"
)

// ShardAssignment is a deterministic round-robin partition of tenants. It is
// owned by the caller that built it; nothing global holds it.
type ShardAssignment struct {
	shards [][]string
	index  map[string]int
}

// AssignShards dedups and sorts the tenant ids, then deals them to n shards
// in turn. The same input always yields the same assignment.
func AssignShards(tenantIDs []string, n int) (ShardAssignment, error) {
	if n < 1 {
		return ShardAssignment{}, ierr.NewErrorf("shard count must be at least 1, got %d", n).
			WithHint("Invalid shard count").
			Mark(ierr.ErrValidation)
	}
	ids := lo.Uniq(lo.Filter(tenantIDs, func(id string, _ int) bool { return id != "" }))
	sort.Strings(ids)

	a := ShardAssignment{
		shards: make([][]string, n),
		index:  make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		shard := i % n
		a.shards[shard] = append(a.shards[shard], id)
		a.index[id] = shard
	}
	return a, nil
}

func (a ShardAssignment) Count() int {
	return len(a.shards)
}

// Tenants returns a copy of the shard's tenants, nil for an unknown shard
func (a ShardAssignment) Tenants(shard int) []string {
	if shard < 0 || shard >= len(a.shards) {
		return nil
	}
	return append([]string(nil), a.shards[shard]...)
}

func (a ShardAssignment) ShardOf(tenantID string) (int, bool) {
	shard, ok := a.index[tenantID]
	return shard, ok
}

// ProcessedTracker remembers which tenants a batch run already finished so a
// resumed shard can skip them.
type ProcessedTracker interface {
	MarkProcessed(ctx context.Context, runID, tenantID string) error
	IsProcessed(ctx context.Context, runID, tenantID string) (bool, error)
	Reset(ctx context.Context, runID string) error
}

type memoryProcessedTracker struct {
	mu   sync.Mutex
	runs map[string]map[string]struct{}
}

func NewMemoryProcessedTracker() ProcessedTracker {
	return &memoryProcessedTracker{runs: make(map[string]map[string]struct{})}
}

func (t *memoryProcessedTracker) MarkProcessed(_ context.Context, runID, tenantID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runs[runID] == nil {
		t.runs[runID] = make(map[string]struct{})
	}
	t.runs[runID][tenantID] = struct{}{}
	return nil
}

func (t *memoryProcessedTracker) IsProcessed(_ context.Context, runID, tenantID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.runs[runID][tenantID]
	return ok, nil
}

func (t *memoryProcessedTracker) Reset(_ context.Context, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
	return nil
}

const (
	processedKeyPrefix = "billing:run:"
	processedTTL       = 48 * time.Hour
)

// redisProcessedTracker keeps one set per run so workers in other processes
// see the same markers.
type redisProcessedTracker struct {
	client *redis.Client
}

func NewRedisProcessedTracker(client *redis.Client) ProcessedTracker {
	return &redisProcessedTracker{client: client}
}

func processedKey(runID string) string {
	return processedKeyPrefix + runID + ":processed"
}

func (t *redisProcessedTracker) MarkProcessed(ctx context.Context, runID, tenantID string) error {
	key := processedKey(runID)
	pipe := t.client.GetClient().TxPipeline()
	pipe.SAdd(ctx, key, tenantID)
	pipe.Expire(ctx, key, processedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record processed tenant").
			WithReportableDetails(map[string]interface{}{"run_id": runID, "tenant_id": tenantID}).
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (t *redisProcessedTracker) IsProcessed(ctx context.Context, runID, tenantID string) (bool, error) {
	ok, err := t.client.GetClient().SIsMember(ctx, processedKey(runID), tenantID).Result()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to read processed tenants").
			WithReportableDetails(map[string]interface{}{"run_id": runID}).
			Mark(ierr.ErrSystem)
	}
	return ok, nil
}

func (t *redisProcessedTracker) Reset(ctx context.Context, runID string) error {
	if err := t.client.GetClient().Del(ctx, processedKey(runID)).Err(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to reset processed tenants").
			Mark(ierr.ErrSystem)
	}
	return nil
}
