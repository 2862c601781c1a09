package types

import (
	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

// RenewalMode selects how a subscription renews at the end of a cycle
type RenewalMode string

const (
	RenewalModeAutomatic RenewalMode = "AUTOMATIC"
	RenewalModeManual    RenewalMode = "MANUAL"
	RenewalModeMixed     RenewalMode = "MIXED"
)

func (m RenewalMode) Validate() error {
	allowed := []RenewalMode{RenewalModeAutomatic, RenewalModeManual, RenewalModeMixed}
	if !lo.Contains(allowed, m) {
		return ierr.NewErrorf("invalid renewal mode: %s", m).
			WithHint("Renewal mode must be AUTOMATIC, MANUAL or MIXED").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Tag is the short label carried on plan_renewed events
func (m RenewalMode) Tag() string {
	switch m {
	case RenewalModeAutomatic:
		return "AUTO"
	case RenewalModeManual:
		return "MANUAL"
	case RenewalModeMixed:
		return "MIXED"
	default:
		return string(m)
	}
}

type RenewalDecision string

const (
	RenewalDecisionRenewed RenewalDecision = "RENEWED"
	RenewalDecisionPending RenewalDecision = "PENDING"
	RenewalDecisionFailed  RenewalDecision = "FAILED"
)

// ReasonCode is a structured cause attached to non-happy outcomes
type ReasonCode string

const (
	ReasonBillingCycleNotFound     ReasonCode = "BILLING_CYCLE_NOT_FOUND"
	ReasonSubscriptionInactive     ReasonCode = "SUBSCRIPTION_INACTIVE"
	ReasonContractOrPlanIneligible ReasonCode = "CONTRACT_OR_PLAN_NOT_ELIGIBLE"
	ReasonUsageLimitExceeded       ReasonCode = "USAGE_LIMIT_EXCEEDED"
	ReasonMissingSuccessfulPayment ReasonCode = "MISSING_SUCCESSFUL_PAYMENT"
	ReasonManualRenewalNotAllowed  ReasonCode = "MANUAL_RENEWAL_NOT_ALLOWED"
	ReasonMixedWaitingApproval     ReasonCode = "MIXED_WAITING_APPROVAL_OR_PAYMENT"
	ReasonUnknownMode              ReasonCode = "UNKNOWN_MODE"
	ReasonNonPaymentGraceExpired   ReasonCode = "NON_PAYMENT_GRACE_EXPIRED"

	ReasonAlreadyInProgress ReasonCode = "ALREADY_IN_PROGRESS"
	ReasonAlreadyCompleted  ReasonCode = "ALREADY_COMPLETED"
	ReasonRetriesExhausted  ReasonCode = "RETRIES_EXHAUSTED"
	ReasonCalculationFailed ReasonCode = "CALCULATION_FAILED"
	ReasonInvoiceFailed     ReasonCode = "INVOICE_GENERATION_FAILED"
	ReasonPaymentFailed     ReasonCode = "PAYMENT_FAILED"
	ReasonNoPaymentToken    ReasonCode = "NO_PAYMENT_TOKEN"
	ReasonAwaitingRetry     ReasonCode = "AWAITING_RETRY"
	ReasonLockHeld          ReasonCode = "LOCK_HELD"
)

func (r ReasonCode) String() string {
	return string(r)
}

// NonPaymentAction is what the enforcement state machine did on a pass
type NonPaymentAction string

const (
	NonPaymentActionNone        NonPaymentAction = "NONE"
	NonPaymentActionWarned      NonPaymentAction = "WARNED"
	NonPaymentActionSuspended   NonPaymentAction = "SUSPENDED"
	NonPaymentActionCancelled   NonPaymentAction = "CANCELLED"
	NonPaymentActionReactivated NonPaymentAction = "REACTIVATED"
	NonPaymentActionFinalized   NonPaymentAction = "ALREADY_FINALIZED"
	NonPaymentActionPaid        NonPaymentAction = "PAID"
)
