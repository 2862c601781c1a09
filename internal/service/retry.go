package service

import (
	"context"
	"fmt"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/types"
)

type RetrySummary struct {
	Retried   int `json:"retried"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
	Skipped   int `json:"skipped"`
}

// RetryService re-runs FAILED cycles once per sweep. A cycle whose retry
// budget is spent moves to FAILED_EXHAUSTED instead.
type RetryService interface {
	RetryFailed(ctx context.Context) (*RetrySummary, error)
	RetryTenant(ctx context.Context, tenantID string) (*RetrySummary, error)
}

type retryService struct {
	ServiceParams
	saga BillingCycleService
}

func NewRetryService(params ServiceParams, saga BillingCycleService) RetryService {
	if saga == nil {
		saga = NewBillingCycleService(params)
	}
	return &retryService{ServiceParams: params, saga: saga}
}

func (s *retryService) RetryFailed(ctx context.Context) (*RetrySummary, error) {
	return s.retry(ctx, types.NewBillingCycleFilter())
}

func (s *retryService) RetryTenant(ctx context.Context, tenantID string) (*RetrySummary, error) {
	filter := types.NewBillingCycleFilter()
	filter.TenantIDs = []string{tenantID}
	return s.retry(ctx, filter)
}

func (s *retryService) retry(ctx context.Context, filter *types.BillingCycleFilter) (*RetrySummary, error) {
	filter.Statuses = []types.BillingCycleStatus{types.BillingCycleStatusFailed}

	// ids are collected up front because retries move cycles out of FAILED
	cycles, err := collectCycles(ctx, s.BillingCycleRepo, filter, s.Config.Billing.RetryPageSize)
	if err != nil {
		return nil, err
	}

	summary := &RetrySummary{}
	for _, c := range cycles {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if c.RetryCount >= s.Config.Billing.MaxRetries {
			exhausted, err := s.exhaustCycle(ctx, c.TenantID, c.ID)
			if err != nil {
				s.Logger.WithContext(ctx).Errorw("failed to exhaust billing cycle",
					"error", err,
					"tenant_id", c.TenantID,
					"billing_cycle_id", c.ID,
				)
				summary.Failed++
				continue
			}
			if exhausted != nil {
				summary.Exhausted++
			} else {
				summary.Skipped++
			}
			continue
		}

		summary.Retried++
		res, err := s.saga.RetryCycle(ctx, c.TenantID, c.ID)
		switch {
		case err != nil:
			summary.Failed++
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Succeeded++
		}
	}

	s.Logger.WithContext(ctx).Infow("retry sweep finished",
		"candidates", len(cycles),
		"retried", summary.Retried,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"exhausted", summary.Exhausted,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// exhaustCycle moves a FAILED cycle to FAILED_EXHAUSTED. It returns nil
// when the cycle is no longer FAILED.
func (p ServiceParams) exhaustCycle(ctx context.Context, tenantID, cycleID string) (*billingcycle.BillingCycle, error) {
	var cycle *billingcycle.BillingCycle
	err := p.Locker.WithLock(ctx, types.LockRequest{Key: types.BillingCycleLockKey(tenantID, cycleID)}, func(ctx context.Context) error {
		current, err := p.BillingCycleRepo.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if err := checkCycleTenant(current, tenantID); err != nil {
			return err
		}
		if current.Status != types.BillingCycleStatusFailed {
			return nil
		}
		if err := current.TransitionTo(ctx, types.BillingCycleStatusFailedExhausted); err != nil {
			return err
		}
		if err := p.BillingCycleRepo.Update(ctx, current); err != nil {
			return err
		}
		cycle = current
		return nil
	})
	if err != nil || cycle == nil {
		return nil, err
	}

	p.publish(ctx, events.NewBillingEvent(cycle.TenantID, types.EventBillingFailedExhausted, map[string]interface{}{
		"retry_count":    cycle.RetryCount,
		"max_retries":    p.Config.Billing.MaxRetries,
		"failure_reason": cycle.FailureReason,
	}).WithCycle(cycle.ID).WithInvoice(cycle.InvoiceID))
	p.audit(ctx, auditlog.New(ctx, cycle.TenantID, types.OperationRetryExhausted,
		fmt.Sprintf("retry_count=%d last_reason=%s", cycle.RetryCount, cycle.FailureReason)).
		WithCycle(cycle.ID).
		WithInvoice(cycle.InvoiceID))
	p.Logger.WithContext(ctx).Warnw("billing cycle retries exhausted",
		"tenant_id", cycle.TenantID,
		"billing_cycle_id", cycle.ID,
		"retry_count", cycle.RetryCount,
	)
	return cycle, nil
}
