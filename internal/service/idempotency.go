package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// AcquireResult tells the saga whether it owns the cycle
type AcquireResult struct {
	Cycle    *billingcycle.BillingCycle
	Acquired bool
	Reason   types.ReasonCode
}

// IdempotencyService guards a (tenant, cycle) pair. Acquire and the
// completion markers take the same lock key.
type IdempotencyService interface {
	// Acquire moves the cycle to IN_PROGRESS. allowFailed lets the retry
	// engine pick up a FAILED cycle.
	Acquire(ctx context.Context, tenantID, cycleID string, allowFailed bool) (*AcquireResult, error)

	MarkCompleted(ctx context.Context, tenantID, cycleID string, mutate func(*billingcycle.BillingCycle)) (*billingcycle.BillingCycle, error)

	// MarkFailed moves the cycle to FAILED. incrementRetry counts the run
	// against the retry budget.
	MarkFailed(ctx context.Context, tenantID, cycleID string, reason types.ReasonCode, message string, incrementRetry bool, mutate func(*billingcycle.BillingCycle)) (*billingcycle.BillingCycle, error)

	IsCompleted(ctx context.Context, tenantID, cycleID string) (bool, error)
}

type idempotencyService struct {
	ServiceParams
}

func NewIdempotencyService(params ServiceParams) IdempotencyService {
	return &idempotencyService{ServiceParams: params}
}

func (s *idempotencyService) Acquire(ctx context.Context, tenantID, cycleID string, allowFailed bool) (*AcquireResult, error) {
	result := &AcquireResult{}
	req := types.LockRequest{
		Key:     types.BillingCycleLockKey(tenantID, cycleID),
		Timeout: lo.ToPtr(time.Duration(0)),
	}

	err := s.Locker.WithLock(ctx, req, func(ctx context.Context) error {
		cycle, err := s.BillingCycleRepo.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if err := checkCycleTenant(cycle, tenantID); err != nil {
			return err
		}
		result.Cycle = cycle

		switch cycle.Status {
		case types.BillingCycleStatusInProgress:
			result.Reason = types.ReasonAlreadyInProgress
			return nil
		case types.BillingCycleStatusCompleted:
			result.Reason = types.ReasonAlreadyCompleted
			return nil
		case types.BillingCycleStatusFailedExhausted:
			result.Reason = types.ReasonRetriesExhausted
			return nil
		case types.BillingCycleStatusFailed:
			if !allowFailed {
				result.Reason = types.ReasonAwaitingRetry
				return nil
			}
		}

		if err := cycle.TransitionTo(ctx, types.BillingCycleStatusInProgress); err != nil {
			return err
		}
		if err := s.BillingCycleRepo.Update(ctx, cycle); err != nil {
			return err
		}
		result.Acquired = true
		return nil
	})
	if err != nil {
		if ierr.IsTimeout(err) {
			// another worker holds the cycle right now
			return &AcquireResult{Reason: types.ReasonLockHeld}, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *idempotencyService) MarkCompleted(ctx context.Context, tenantID, cycleID string, mutate func(*billingcycle.BillingCycle)) (*billingcycle.BillingCycle, error) {
	return s.finish(ctx, tenantID, cycleID, types.BillingCycleStatusCompleted, func(c *billingcycle.BillingCycle) {
		if mutate != nil {
			mutate(c)
		}
	})
}

func (s *idempotencyService) MarkFailed(ctx context.Context, tenantID, cycleID string, reason types.ReasonCode, message string, incrementRetry bool, mutate func(*billingcycle.BillingCycle)) (*billingcycle.BillingCycle, error) {
	return s.finish(ctx, tenantID, cycleID, types.BillingCycleStatusFailed, func(c *billingcycle.BillingCycle) {
		if mutate != nil {
			mutate(c)
		}
		c.FailureReason = reason
		c.FailureMessage = message
		if incrementRetry {
			c.RetryCount++
		}
	})
}

func (s *idempotencyService) finish(ctx context.Context, tenantID, cycleID string, next types.BillingCycleStatus, apply func(*billingcycle.BillingCycle)) (*billingcycle.BillingCycle, error) {
	var out *billingcycle.BillingCycle
	req := types.LockRequest{Key: types.BillingCycleLockKey(tenantID, cycleID)}

	err := s.Locker.WithLock(ctx, req, func(ctx context.Context) error {
		cycle, err := s.BillingCycleRepo.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if err := checkCycleTenant(cycle, tenantID); err != nil {
			return err
		}
		apply(cycle)
		if err := cycle.TransitionTo(ctx, next); err != nil {
			return err
		}
		if err := s.BillingCycleRepo.Update(ctx, cycle); err != nil {
			return err
		}
		out = cycle
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *idempotencyService) IsCompleted(ctx context.Context, tenantID, cycleID string) (bool, error) {
	cycle, err := s.BillingCycleRepo.Get(ctx, cycleID)
	if err != nil {
		return false, err
	}
	if err := checkCycleTenant(cycle, tenantID); err != nil {
		return false, err
	}
	return cycle.Status == types.BillingCycleStatusCompleted, nil
}

func checkCycleTenant(cycle *billingcycle.BillingCycle, tenantID string) error {
	if cycle.TenantID != tenantID {
		return ierr.NewError("billing cycle belongs to another tenant").
			WithHint("Billing cycle not found for tenant").
			WithReportableDetails(map[string]interface{}{
				"billing_cycle_id": cycle.ID,
				"tenant_id":        tenantID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
