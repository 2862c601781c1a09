package service

import (
	"context"
	"fmt"
	"time"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/events"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

type Sweep string

const (
	SweepBilling      Sweep = "billing"
	SweepRenewal      Sweep = "renewal"
	SweepCancellation Sweep = "cancellation"
	SweepRetry        Sweep = "retry"
)

type ScheduleSummary struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

type SweepResult struct {
	Sweep  Sweep          `json:"sweep"`
	RunID  string         `json:"run_id"`
	Shards []ShardSummary `json:"shards,omitempty"`
	Retry  *RetrySummary  `json:"retry,omitempty"`
}

// Failed counts tenants that failed across all shards
func (r *SweepResult) Failed() int {
	n := 0
	for _, s := range r.Shards {
		n += s.Failed
	}
	return n
}

// SchedulerService creates billing cycles and drives the periodic sweeps
// over the active tenants.
type SchedulerService interface {
	ScheduleBillingCycles(ctx context.Context, tenantIDs []string, periodStart, periodEnd time.Time) (*ScheduleSummary, error)

	RunBillingSweep(ctx context.Context, now time.Time) (*SweepResult, error)
	RunRenewalSweep(ctx context.Context, now time.Time) (*SweepResult, error)
	RunCancellationSweep(ctx context.Context, now time.Time) (*SweepResult, error)
	RunRetrySweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

type schedulerService struct {
	ServiceParams
	saga   BillingCycleService
	runner *BatchRunner
}

func NewSchedulerService(params ServiceParams, saga BillingCycleService, tracker ProcessedTracker) SchedulerService {
	if saga == nil {
		saga = NewBillingCycleService(params)
	}
	if tracker == nil {
		tracker = NewMemoryProcessedTracker()
	}
	cfg := params.Config.Billing
	return &schedulerService{
		ServiceParams: params,
		saga:          saga,
		runner:        NewBatchRunner(tracker, cfg.ShardConcurrency, cfg.TenantRateLimit, params.Logger),
	}
}

// CalendarMonth returns the first and last day of the month containing t
func CalendarMonth(t time.Time) (time.Time, time.Time) {
	day := types.StartOfDay(t)
	start := day.AddDate(0, 0, 1-day.Day())
	return start, start.AddDate(0, 1, -1)
}

// runID is stable per sweep and day so a re-fired sweep resumes where the
// previous one stopped.
func runID(sweep Sweep, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", types.UUID_PREFIX_BATCH_RUN, sweep, now.UTC().Format(time.DateOnly))
}

func (s *schedulerService) ScheduleBillingCycles(ctx context.Context, tenantIDs []string, periodStart, periodEnd time.Time) (*ScheduleSummary, error) {
	periodStart, periodEnd = types.StartOfDay(periodStart), types.StartOfDay(periodEnd)
	if periodEnd.Before(periodStart) {
		return nil, ierr.NewError("period ends before it starts").
			WithHint("Invalid billing period").
			WithReportableDetails(map[string]interface{}{
				"period_start": periodStart,
				"period_end":   periodEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	summary := &ScheduleSummary{Created: []string{}, Skipped: []string{}}
	for _, tenantID := range tenantIDs {
		_, err := s.BillingCycleRepo.GetByPeriod(ctx, tenantID, periodStart, periodEnd)
		if err == nil {
			summary.Skipped = append(summary.Skipped, tenantID)
			continue
		}
		if !ierr.IsNotFound(err) {
			return summary, err
		}

		cycle := billingcycle.New(ctx, tenantID, periodStart, periodEnd)
		if err := s.BillingCycleRepo.Create(ctx, cycle); err != nil {
			if ierr.IsAlreadyExists(err) {
				summary.Skipped = append(summary.Skipped, tenantID)
				continue
			}
			return summary, err
		}
		summary.Created = append(summary.Created, tenantID)

		s.publish(ctx, events.NewBillingEvent(tenantID, types.EventBillingStarted, map[string]interface{}{
			"period_start": periodStart,
			"period_end":   periodEnd,
		}).WithCycle(cycle.ID))
		s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationScheduleCycle,
			fmt.Sprintf("%s..%s", periodStart.Format(time.DateOnly), periodEnd.Format(time.DateOnly))).
			WithCycle(cycle.ID))
	}

	s.Logger.WithContext(ctx).Infow("billing cycles scheduled",
		"period_start", periodStart,
		"period_end", periodEnd,
		"created", len(summary.Created),
		"skipped", len(summary.Skipped),
	)
	return summary, nil
}

func (s *schedulerService) sweep(ctx context.Context, sweep Sweep, now time.Time, fn TenantFunc) (*SweepResult, error) {
	tenantIDs, err := s.SubRepo.ListActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}
	assignment, err := AssignShards(tenantIDs, s.Config.Billing.ShardCount)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Sweep: sweep, RunID: runID(sweep, now)}
	result.Shards = s.runner.Run(ctx, result.RunID, assignment, fn)

	s.Logger.WithContext(ctx).Infow("sweep finished",
		"sweep", sweep,
		"run_id", result.RunID,
		"tenants", len(tenantIDs),
		"shards", assignment.Count(),
		"failed", result.Failed(),
	)
	return result, nil
}

// RunBillingSweep schedules the current month and bills every scheduled
// cycle whose period has ended.
func (s *schedulerService) RunBillingSweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	monthStart, monthEnd := CalendarMonth(now)
	today := types.StartOfDay(now)

	return s.sweep(ctx, SweepBilling, now, func(ctx context.Context, tenantID string) error {
		if _, err := s.ScheduleBillingCycles(ctx, []string{tenantID}, monthStart, monthEnd); err != nil {
			return err
		}

		filter := types.NewBillingCycleFilter()
		filter.TenantIDs = []string{tenantID}
		filter.Statuses = []types.BillingCycleStatus{types.BillingCycleStatusScheduled}
		cycles, err := collectCycles(ctx, s.BillingCycleRepo, filter, s.Config.Billing.RetryPageSize)
		if err != nil {
			return err
		}

		var firstErr error
		for _, c := range cycles {
			if !types.StartOfDay(c.PeriodEnd).Before(today) {
				continue
			}
			if _, err := s.saga.RunBillingCycle(ctx, tenantID, c.ID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

func (s *schedulerService) RunRenewalSweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	renewals := NewRenewalService(s.ServiceParams)
	return s.sweep(ctx, SweepRenewal, now, func(ctx context.Context, tenantID string) error {
		_, err := renewals.RenewTenant(ctx, tenantID, now)
		return err
	})
}

func (s *schedulerService) RunCancellationSweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	enforcer := NewNonPaymentService(s.ServiceParams)
	return s.sweep(ctx, SweepCancellation, now, func(ctx context.Context, tenantID string) error {
		_, err := enforcer.EnforceTenant(ctx, tenantID, now)
		return err
	})
}

// RunRetrySweep is not sharded; FAILED cycles are few and selected directly
func (s *schedulerService) RunRetrySweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	summary, err := NewRetryService(s.ServiceParams, s.saga).RetryFailed(ctx)
	if err != nil {
		return nil, err
	}
	return &SweepResult{Sweep: SweepRetry, RunID: runID(SweepRetry, now), Retry: summary}, nil
}
