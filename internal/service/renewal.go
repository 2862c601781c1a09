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

type RenewalResult struct {
	Decision       types.RenewalDecision `json:"decision"`
	Reason         types.ReasonCode      `json:"reason,omitempty"`
	CycleID        string                `json:"cycle_id"`
	Mode           types.RenewalMode     `json:"mode,omitempty"`
	NewPeriodStart *time.Time            `json:"new_period_start,omitempty"`
	NewPeriodEnd   *time.Time            `json:"new_period_end,omitempty"`
}

// RenewalService decides whether a subscription rolls into its next period
// at the end of a cycle.
type RenewalService interface {
	// EvaluateRenewal is idempotent per cycle: a cycle that already renewed
	// the subscription reports RENEWED without touching it again.
	EvaluateRenewal(ctx context.Context, tenantID, cycleID string) (*RenewalResult, error)

	// RenewTenant evaluates the cycle of the tenant's current period once
	// that period has ended. It returns nil when nothing is due.
	RenewTenant(ctx context.Context, tenantID string, now time.Time) (*RenewalResult, error)
}

type renewalService struct {
	ServiceParams
}

func NewRenewalService(params ServiceParams) RenewalService {
	return &renewalService{ServiceParams: params}
}

func (s *renewalService) RenewTenant(ctx context.Context, tenantID string, now time.Time) (*RenewalResult, error) {
	sub, err := s.SubRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !types.StartOfDay(now).After(types.StartOfDay(sub.CurrentPeriodEnd)) {
		return nil, nil
	}
	cycle, err := s.BillingCycleRepo.GetByPeriod(ctx, tenantID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.WithContext(ctx).Debugw("no billing cycle for current period",
				"tenant_id", tenantID,
				"period_start", sub.CurrentPeriodStart,
				"period_end", sub.CurrentPeriodEnd,
			)
			return nil, nil
		}
		return nil, err
	}
	return s.EvaluateRenewal(ctx, tenantID, cycle.ID)
}

func (s *renewalService) EvaluateRenewal(ctx context.Context, tenantID, cycleID string) (*RenewalResult, error) {
	cycle, err := s.BillingCycleRepo.Get(ctx, cycleID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if cycle == nil || cycle.TenantID != tenantID {
		return s.reject(ctx, tenantID, nil, "", types.ReasonBillingCycleNotFound, true)
	}

	sub, err := s.SubRepo.GetByTenantID(ctx, tenantID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if sub == nil || !sub.IsActive() {
		return s.reject(ctx, tenantID, cycle, "", types.ReasonSubscriptionInactive, true)
	}

	if sub.LastRenewedCycleID == cycle.ID {
		return renewedResult(cycle.ID, "", sub), nil
	}

	pol, err := s.PolicyProvider.GetPolicy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	mode := pol.RenewalMode

	reason, err := s.checkEligibility(ctx, pol, sub, cycle)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason, err = s.checkMode(ctx, pol, cycle)
		if err != nil {
			return nil, err
		}
	}
	if reason != "" {
		terminal := reason == types.ReasonManualRenewalNotAllowed || reason == types.ReasonUnknownMode || pol.MustFailOnReason(reason)
		return s.reject(ctx, tenantID, cycle, mode, reason, terminal)
	}

	return s.renew(ctx, tenantID, cycle, pol)
}

func (s *renewalService) checkEligibility(ctx context.Context, pol *policy.Policy, sub *subscription.Subscription, cycle *billingcycle.BillingCycle) (types.ReasonCode, error) {
	if !pol.IsContractValid(sub.ContractEndDate, cycle.PeriodEnd) || !pol.IsPlanEligible(sub.PlanCode) {
		return types.ReasonContractOrPlanIneligible, nil
	}
	if pol.UsageLimit == nil {
		return "", nil
	}
	snap, err := NewUsageService(s.ServiceParams).FetchUsage(ctx, cycle.TenantID, cycle.PeriodStart, cycle.PeriodEnd)
	if err != nil {
		return "", err
	}
	if !pol.IsWithinUsageLimit(snap.Units()) {
		return types.ReasonUsageLimitExceeded, nil
	}
	return "", nil
}

func (s *renewalService) checkMode(ctx context.Context, pol *policy.Policy, cycle *billingcycle.BillingCycle) (types.ReasonCode, error) {
	paid := func() (bool, error) {
		return s.PaymentRepo.HasSuccessfulForBillingCycle(ctx, cycle.ID)
	}

	switch pol.RenewalMode {
	case types.RenewalModeAutomatic:
		if !pol.RequiresSuccessfulPaymentBeforeRenewal(types.RenewalModeAutomatic) {
			return "", nil
		}
	case types.RenewalModeManual:
		if !pol.AllowsManualRenewal() {
			return types.ReasonManualRenewalNotAllowed, nil
		}
		if !pol.RequiresSuccessfulPaymentBeforeRenewal(types.RenewalModeManual) {
			return "", nil
		}
	case types.RenewalModeMixed:
		if pol.HasPreApproval() {
			return "", nil
		}
		ok, err := paid()
		if err != nil {
			return "", err
		}
		if !ok {
			return types.ReasonMixedWaitingApproval, nil
		}
		return "", nil
	default:
		return types.ReasonUnknownMode, nil
	}

	ok, err := paid()
	if err != nil {
		return "", err
	}
	if !ok {
		return types.ReasonMissingSuccessfulPayment, nil
	}
	return "", nil
}

func (s *renewalService) renew(ctx context.Context, tenantID string, cycle *billingcycle.BillingCycle, pol *policy.Policy) (*RenewalResult, error) {
	var renewed *subscription.Subscription
	already := false

	err := s.Locker.WithLock(ctx, types.LockRequest{Key: types.SubscriptionLockKey(tenantID)}, func(ctx context.Context) error {
		sub, err := s.SubRepo.GetByTenantID(ctx, tenantID)
		if err != nil {
			return err
		}
		renewed = sub
		if sub.LastRenewedCycleID == cycle.ID {
			already = true
			return nil
		}

		start, end := pol.NextPeriod(cycle.PeriodEnd)
		now := time.Now().UTC()
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = end
		sub.LastRenewedCycleID = cycle.ID
		sub.LastRenewedAt = &now
		sub.Touch(ctx)
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	if already {
		return renewedResult(cycle.ID, pol.RenewalMode, renewed), nil
	}

	if cycle.RenewalPendingReason != "" {
		s.setPendingReason(ctx, cycle.ID, "")
	}

	s.publish(ctx, events.NewBillingEvent(tenantID, types.EventPlanRenewed, map[string]interface{}{
		"period_start": renewed.CurrentPeriodStart,
		"period_end":   renewed.CurrentPeriodEnd,
		"mode":         pol.RenewalMode.Tag(),
	}).WithCycle(cycle.ID))
	s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationRenewal,
		fmt.Sprintf("renewed %s to %s mode=%s",
			renewed.CurrentPeriodStart.Format(time.DateOnly),
			renewed.CurrentPeriodEnd.Format(time.DateOnly),
			pol.RenewalMode.Tag())).
		WithCycle(cycle.ID))
	s.Logger.WithContext(ctx).Infow("subscription renewed",
		"tenant_id", tenantID,
		"billing_cycle_id", cycle.ID,
		"period_start", renewed.CurrentPeriodStart,
		"period_end", renewed.CurrentPeriodEnd,
		"mode", pol.RenewalMode,
	)
	return renewedResult(cycle.ID, pol.RenewalMode, renewed), nil
}

func renewedResult(cycleID string, mode types.RenewalMode, sub *subscription.Subscription) *RenewalResult {
	start, end := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	return &RenewalResult{
		Decision:       types.RenewalDecisionRenewed,
		CycleID:        cycleID,
		Mode:           mode,
		NewPeriodStart: &start,
		NewPeriodEnd:   &end,
	}
}

// reject records a non-renewal. Terminal reasons emit renewal_failed; the
// rest leave a pending reason on the cycle for the next pass.
func (s *renewalService) reject(ctx context.Context, tenantID string, cycle *billingcycle.BillingCycle, mode types.RenewalMode, reason types.ReasonCode, terminal bool) (*RenewalResult, error) {
	result := &RenewalResult{Reason: reason, Mode: mode}
	cycleID := ""
	if cycle != nil {
		cycleID = cycle.ID
		result.CycleID = cycle.ID
	}

	log := s.Logger.WithContext(ctx).With(
		"tenant_id", tenantID,
		"billing_cycle_id", cycleID,
		"reason", reason,
	)

	if !terminal {
		result.Decision = types.RenewalDecisionPending
		if cycle != nil && cycle.RenewalPendingReason != reason {
			s.setPendingReason(ctx, cycle.ID, reason)
		}
		log.Infow("renewal pending")
		return result, nil
	}

	result.Decision = types.RenewalDecisionFailed
	s.publish(ctx, events.NewBillingEvent(tenantID, types.EventRenewalFailed, map[string]interface{}{
		"reason": reason,
		"mode":   mode.Tag(),
	}).WithCycle(cycleID))
	s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationRenewal, "renewal failed: "+reason.String()).
		WithCycle(cycleID))
	log.Warnw("renewal failed")
	return result, nil
}

func (s *renewalService) setPendingReason(ctx context.Context, cycleID string, reason types.ReasonCode) {
	cycle, err := s.BillingCycleRepo.Get(ctx, cycleID)
	if err == nil {
		cycle.RenewalPendingReason = reason
		cycle.Touch(ctx)
		err = s.BillingCycleRepo.Update(ctx, cycle)
	}
	if err != nil {
		s.Logger.WithContext(ctx).Errorw("failed to record renewal pending reason",
			"error", err,
			"billing_cycle_id", cycleID,
			"reason", reason,
		)
	}
}
