package service

import (
	"context"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"golang.org/x/time/rate"
)

// TenantFunc processes one tenant of a batch run
type TenantFunc func(ctx context.Context, tenantID string) error

type ShardSummary struct {
	Shard         int      `json:"shard"`
	Tenants       int      `json:"tenants"`
	Processed     int      `json:"processed"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	FailedTenants []string `json:"failed_tenants,omitempty"`
	// Err is set when the shard itself aborted, e.g. on a panic or cancellation
	Err error `json:"-"`
}

// BatchRunner runs shards in parallel. A failing tenant or shard never stops
// the others.
type BatchRunner struct {
	tracker     ProcessedTracker
	concurrency int
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewBatchRunner limits tenant calls to ratePerSecond across all shards; a
// non-positive rate disables the limit.
func NewBatchRunner(tracker ProcessedTracker, concurrency int, ratePerSecond float64, log *logger.Logger) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	limit, burst := rate.Inf, 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	return &BatchRunner{
		tracker:     tracker,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		log:         log,
	}
}

func (r *BatchRunner) Run(ctx context.Context, runID string, assignment ShardAssignment, fn TenantFunc) []ShardSummary {
	summaries := make([]ShardSummary, assignment.Count())
	p := pool.New().WithMaxGoroutines(r.concurrency)

	for shard := 0; shard < assignment.Count(); shard++ {
		tenants := assignment.Tenants(shard)
		summaries[shard] = ShardSummary{Shard: shard, Tenants: len(tenants)}

		p.Go(func() {
			sum := &summaries[shard]
			var pc panics.Catcher
			pc.Try(func() {
				r.runShard(ctx, runID, tenants, fn, sum)
			})
			if rec := pc.Recovered(); rec != nil {
				sum.Err = rec.AsError()
				r.log.WithContext(ctx).Errorw("shard panicked",
					"run_id", runID,
					"shard", shard,
					"error", sum.Err,
				)
			}
		})
	}
	p.Wait()
	return summaries
}

func (r *BatchRunner) runShard(ctx context.Context, runID string, tenants []string, fn TenantFunc, sum *ShardSummary) {
	log := r.log.WithContext(ctx).With("run_id", runID, "shard", sum.Shard)

	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			sum.Err = err
			return
		}

		done, err := r.tracker.IsProcessed(ctx, runID, tenantID)
		if err != nil {
			log.Warnw("processed check failed, running tenant anyway", "tenant_id", tenantID, "error", err)
		}
		if done {
			sum.Skipped++
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			sum.Err = err
			return
		}

		if err := r.runTenant(ctx, tenantID, fn); err != nil {
			sum.Failed++
			sum.FailedTenants = append(sum.FailedTenants, tenantID)
			log.Errorw("tenant failed in batch run", "tenant_id", tenantID, "error", err)
			continue
		}
		sum.Processed++
		if err := r.tracker.MarkProcessed(ctx, runID, tenantID); err != nil {
			log.Warnw("failed to mark tenant processed", "tenant_id", tenantID, "error", err)
		}
	}
}

// runTenant turns a tenant panic into an error so the shard carries on
func (r *BatchRunner) runTenant(ctx context.Context, tenantID string, fn TenantFunc) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = fn(ctx, tenantID)
	})
	if rec := pc.Recovered(); rec != nil {
		return ierr.WithError(rec.AsError()).
			WithHintf("Tenant %s panicked during batch run", tenantID).
			Mark(ierr.ErrInternal)
	}
	return err
}
