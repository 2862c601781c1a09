package subscription

import (
	"context"
	"time"

	"github.com/worksphere/billing/internal/types"
)

// Subscription is a tenant's plan contract. A tenant has exactly one.
type Subscription struct {
	ID                 string                `db:"id" json:"id"`
	PlanCode           string                `db:"plan_code" json:"plan_code"`
	PlanType           string                `db:"plan_type" json:"plan_type"`
	Tier               string                `db:"tier" json:"tier"`
	Country            string                `db:"country" json:"country"`
	Currency           string                `db:"currency" json:"currency"`
	Email              string                `db:"email" json:"email,omitempty"`
	Provider           types.PaymentProvider `db:"provider" json:"provider"`
	PaymentTokenID     string                `db:"payment_token_id" json:"payment_token_id,omitempty"`
	ContractEndDate    *time.Time            `db:"contract_end_date" json:"contract_end_date,omitempty"`
	CurrentPeriodStart time.Time             `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time             `db:"current_period_end" json:"current_period_end"`
	LastRenewedCycleID string                `db:"last_renewed_cycle_id" json:"last_renewed_cycle_id,omitempty"`
	LastRenewedAt      *time.Time            `db:"last_renewed_at" json:"last_renewed_at,omitempty"`

	Suspended        bool       `db:"suspended" json:"suspended"`
	SuspendedAt      *time.Time `db:"suspended_at" json:"suspended_at,omitempty"`
	SuspensionReason string     `db:"suspension_reason" json:"suspension_reason,omitempty"`

	Cancelled          bool       `db:"cancelled" json:"cancelled"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	types.BaseModel
}

// IsActive reports the subscription can be billed and renewed
func (s *Subscription) IsActive() bool {
	return !s.Cancelled && !s.Suspended
}

// Suspend is reversible. It reports false when already suspended or cancelled.
func (s *Subscription) Suspend(ctx context.Context, reason string, at time.Time) bool {
	if s.Cancelled || s.Suspended {
		return false
	}
	s.Suspended = true
	s.SuspendedAt = &at
	s.SuspensionReason = reason
	s.Touch(ctx)
	return true
}

// Cancel is terminal. It reports false when already cancelled.
func (s *Subscription) Cancel(ctx context.Context, reason string, at time.Time) bool {
	if s.Cancelled {
		return false
	}
	s.Cancelled = true
	s.CancelledAt = &at
	s.CancellationReason = reason
	s.Touch(ctx)
	return true
}

// Reactivate clears a suspension. Non-suspended subscriptions are left alone.
func (s *Subscription) Reactivate(ctx context.Context) bool {
	if !s.Suspended || s.Cancelled {
		return false
	}
	s.Suspended = false
	s.SuspendedAt = nil
	s.SuspensionReason = ""
	s.Touch(ctx)
	return true
}

func (s *Subscription) Copy() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	for _, p := range []**time.Time{&cp.ContractEndDate, &cp.LastRenewedAt, &cp.SuspendedAt, &cp.CancelledAt} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &cp
}
