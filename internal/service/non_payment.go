package service

import (
	"context"
	"fmt"
	"time"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/domain/policy"
	"github.com/worksphere/billing/internal/domain/subscription"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// NonPaymentOutcome is what one enforcement pass did to a cycle
type NonPaymentOutcome struct {
	TenantID       string                 `json:"tenant_id"`
	BillingCycleID string                 `json:"billing_cycle_id"`
	Action         types.NonPaymentAction `json:"action"`
	Reason         types.ReasonCode       `json:"reason,omitempty"`
}

// NonPaymentService enforces grace periods on unpaid invoices. Warnings and
// the suspend or cancel action each happen at most once per cycle.
type NonPaymentService interface {
	// Enforce runs one pass for a cycle as of now
	Enforce(ctx context.Context, tenantID, cycleID string, now time.Time) (*NonPaymentOutcome, error)

	// EnforceTenant runs Enforce over every invoiced, non-finalized cycle of a tenant
	EnforceTenant(ctx context.Context, tenantID string, now time.Time) ([]*NonPaymentOutcome, error)

	// ReactivateIfPaid lifts a suspension once the cycle has a successful
	// payment and policy allows it. It reports whether it reactivated.
	ReactivateIfPaid(ctx context.Context, tenantID, cycleID string) (bool, error)
}

type nonPaymentService struct {
	ServiceParams
}

func NewNonPaymentService(params ServiceParams) NonPaymentService {
	return &nonPaymentService{ServiceParams: params}
}

func (s *nonPaymentService) EnforceTenant(ctx context.Context, tenantID string, now time.Time) ([]*NonPaymentOutcome, error) {
	filter := types.NewBillingCycleFilter()
	filter.TenantIDs = []string{tenantID}
	cycles, err := collectCycles(ctx, s.BillingCycleRepo, filter, s.Config.Billing.RetryPageSize)
	if err != nil {
		return nil, err
	}

	var outcomes []*NonPaymentOutcome
	for _, c := range cycles {
		if c.InvoiceID == "" || c.Finalized {
			continue
		}
		out, err := s.Enforce(ctx, tenantID, c.ID, now)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (s *nonPaymentService) Enforce(ctx context.Context, tenantID, cycleID string, now time.Time) (*NonPaymentOutcome, error) {
	out := &NonPaymentOutcome{TenantID: tenantID, BillingCycleID: cycleID, Action: types.NonPaymentActionNone}

	cycle, err := s.BillingCycleRepo.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if err := checkCycleTenant(cycle, tenantID); err != nil {
		return nil, err
	}
	if cycle.InvoiceID == "" {
		return out, nil
	}

	pol, err := s.PolicyProvider.GetPolicy(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	paid, err := s.PaymentRepo.HasSuccessfulForBillingCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if paid {
		out.Action = types.NonPaymentActionPaid
		reactivated, err := s.ReactivateIfPaid(ctx, tenantID, cycleID)
		if err != nil {
			return nil, err
		}
		if reactivated {
			out.Action = types.NonPaymentActionReactivated
		}
		return out, nil
	}

	due := cycle.EffectiveDueDate()
	threshold := pol.CancelThreshold(due)
	warnStart := pol.WarningStart(due)

	switch {
	case now.Before(warnStart):
		return out, nil
	case now.Before(threshold):
		warned, err := s.warn(ctx, tenantID, cycleID, now)
		if err != nil {
			return nil, err
		}
		if warned {
			out.Action = types.NonPaymentActionWarned
			s.publish(ctx, events.NewBillingEvent(tenantID, types.EventCancellationWarning, map[string]interface{}{
				"due_date":         due,
				"cancel_threshold": threshold,
				"action":           finalAction(pol),
			}).WithCycle(cycleID).WithInvoice(cycle.InvoiceID))
			s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationNonPayment,
				fmt.Sprintf("warning emitted, threshold=%s", threshold.Format(time.DateOnly))).
				WithCycle(cycleID).
				WithInvoice(cycle.InvoiceID))
		}
		return out, nil
	}

	action, err := s.finalize(ctx, tenantID, cycleID, pol, now)
	if err != nil {
		return nil, err
	}
	out.Action = action
	if action == types.NonPaymentActionFinalized || action == types.NonPaymentActionNone {
		return out, nil
	}
	out.Reason = types.ReasonNonPaymentGraceExpired

	s.notifyOrchestrator(ctx, tenantID, action)

	eventType := types.EventServiceSuspended
	if action == types.NonPaymentActionCancelled {
		eventType = types.EventSubscriptionCancelled
	}
	s.publish(ctx, events.NewBillingEvent(tenantID, eventType, map[string]interface{}{
		"reason":           types.ReasonNonPaymentGraceExpired,
		"due_date":         due,
		"cancel_threshold": threshold,
	}).WithCycle(cycleID).WithInvoice(cycle.InvoiceID))
	s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationNonPayment,
		fmt.Sprintf("%s: %s", action, types.ReasonNonPaymentGraceExpired)).
		WithCycle(cycleID).
		WithInvoice(cycle.InvoiceID))
	s.Logger.WithContext(ctx).Infow("non-payment enforcement applied",
		"tenant_id", tenantID,
		"billing_cycle_id", cycleID,
		"invoice_id", cycle.InvoiceID,
		"action", action,
	)
	return out, nil
}

func finalAction(pol *policy.Policy) types.NonPaymentAction {
	if pol.CancelInsteadOfSuspend {
		return types.NonPaymentActionCancelled
	}
	return types.NonPaymentActionSuspended
}

// warn sets the cycle's warning flag under the tenant lock and reports
// whether this pass set it.
func (s *nonPaymentService) warn(ctx context.Context, tenantID, cycleID string, now time.Time) (bool, error) {
	warned := false
	err := s.Locker.WithLock(ctx, types.LockRequest{Key: types.SubscriptionLockKey(tenantID)}, func(ctx context.Context) error {
		cycle, err := s.BillingCycleRepo.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Finalized || !cycle.MarkWarningEmitted(now) {
			return nil
		}
		cycle.Touch(ctx)
		if err := s.BillingCycleRepo.Update(ctx, cycle); err != nil {
			return err
		}
		warned = true
		return nil
	})
	return warned, err
}

// finalize suspends or cancels the subscription once per cycle
func (s *nonPaymentService) finalize(ctx context.Context, tenantID, cycleID string, pol *policy.Policy, now time.Time) (types.NonPaymentAction, error) {
	action := types.NonPaymentActionNone
	err := s.Locker.WithLock(ctx, types.LockRequest{Key: types.SubscriptionLockKey(tenantID)}, func(ctx context.Context) error {
		cycle, err := s.BillingCycleRepo.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Finalized {
			action = types.NonPaymentActionFinalized
			return nil
		}
		sub, err := s.SubRepo.GetByTenantID(ctx, tenantID)
		if err != nil {
			return err
		}

		reason := types.ReasonNonPaymentGraceExpired.String()
		if pol.CancelInsteadOfSuspend {
			if sub.Cancel(ctx, reason, now) {
				action = types.NonPaymentActionCancelled
			}
		} else if sub.Suspend(ctx, reason, now) {
			action = types.NonPaymentActionSuspended
		}

		cycle.MarkFinalized(now)
		cycle.Touch(ctx)
		if action != types.NonPaymentActionNone {
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
		return s.BillingCycleRepo.Update(ctx, cycle)
	})
	return action, err
}

// notifyOrchestrator is best effort; the billing state is already committed
func (s *nonPaymentService) notifyOrchestrator(ctx context.Context, tenantID string, action types.NonPaymentAction) {
	octx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.Orchestrator)
	defer cancel()

	reason := types.ReasonNonPaymentGraceExpired.String()
	var err error
	switch action {
	case types.NonPaymentActionSuspended:
		err = s.Orchestrator.SuspendTenant(octx, tenantID, reason)
	case types.NonPaymentActionCancelled:
		err = s.Orchestrator.CancelTenant(octx, tenantID, reason)
	case types.NonPaymentActionReactivated:
		err = s.Orchestrator.ReactivateTenant(octx, tenantID)
	default:
		return
	}
	if err != nil {
		s.Logger.WithContext(ctx).Warnw("orchestrator call failed, will reconcile later",
			"error", err,
			"tenant_id", tenantID,
			"action", action,
		)
	}
}

func (s *nonPaymentService) ReactivateIfPaid(ctx context.Context, tenantID, cycleID string) (bool, error) {
	pol, err := s.PolicyProvider.GetPolicy(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if !pol.AutoReactivate {
		return false, nil
	}

	paid, err := s.PaymentRepo.HasSuccessfulForBillingCycle(ctx, cycleID)
	if err != nil {
		return false, err
	}
	if !paid {
		return false, nil
	}

	var sub *subscription.Subscription
	reactivated := false
	err = s.Locker.WithLock(ctx, types.LockRequest{Key: types.SubscriptionLockKey(tenantID)}, func(ctx context.Context) error {
		current, err := s.SubRepo.GetByTenantID(ctx, tenantID)
		if err != nil {
			return err
		}
		if !current.Reactivate(ctx) {
			return nil
		}
		if err := s.SubRepo.Update(ctx, current); err != nil {
			return err
		}
		sub = current
		reactivated = true
		return nil
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Subscription could not be reactivated").
			WithReportableDetails(map[string]interface{}{
				"tenant_id":        tenantID,
				"billing_cycle_id": cycleID,
			}).
			Mark(ierr.ErrInternal)
	}
	if !reactivated {
		return false, nil
	}

	s.notifyOrchestrator(ctx, tenantID, types.NonPaymentActionReactivated)
	s.publish(ctx, events.NewBillingEvent(tenantID, types.EventServiceReactivated, map[string]interface{}{
		"subscription_id": sub.ID,
	}).WithCycle(cycleID))
	s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationNonPayment, "reactivated after payment").
		WithCycle(cycleID))
	s.Logger.WithContext(ctx).Infow("subscription reactivated",
		"tenant_id", tenantID,
		"billing_cycle_id", cycleID,
	)
	return true, nil
}

// collectCycles reads every cycle matching filter, one page at a time
func collectCycles(ctx context.Context, repo billingcycle.Repository, filter *types.BillingCycleFilter, pageSize int) ([]*billingcycle.BillingCycle, error) {
	if pageSize <= 0 {
		pageSize = types.FILTER_DEFAULT_LIMIT
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	filter.QueryFilter.Limit = &pageSize

	var all []*billingcycle.BillingCycle
	for offset := 0; ; offset += pageSize {
		filter.QueryFilter.Offset = &offset
		page, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
