package billingcycle

import (
	"context"
	"time"

	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// BillingCycle is one bounded charging period of a tenant
type BillingCycle struct {
	ID          string                   `db:"id" json:"id"`
	PeriodStart time.Time                `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time                `db:"period_end" json:"period_end"`
	DueDate     *time.Time               `db:"due_date" json:"due_date,omitempty"`
	Status      types.BillingCycleStatus `db:"status" json:"status"`
	RetryCount  int                      `db:"retry_count" json:"retry_count"`
	InvoiceID   string                   `db:"invoice_id" json:"invoice_id,omitempty"`
	PaymentID   string                   `db:"payment_id" json:"payment_id,omitempty"`

	FailureReason        types.ReasonCode `db:"failure_reason" json:"failure_reason,omitempty"`
	FailureMessage       string           `db:"failure_message" json:"failure_message,omitempty"`
	RenewalPendingReason types.ReasonCode `db:"renewal_pending_reason" json:"renewal_pending_reason,omitempty"`

	WarningEmitted   bool       `db:"warning_emitted" json:"warning_emitted"`
	WarningEmittedAt *time.Time `db:"warning_emitted_at" json:"warning_emitted_at,omitempty"`
	Finalized        bool       `db:"finalized" json:"finalized"`
	FinalizedAt      *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`

	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	types.BaseModel
}

func New(ctx context.Context, tenantID string, start, end time.Time) *BillingCycle {
	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = tenantID
	return &BillingCycle{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_CYCLE),
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      types.BillingCycleStatusScheduled,
		BaseModel:   base,
	}
}

// TransitionTo moves the cycle to next if the state machine allows it
func (c *BillingCycle) TransitionTo(ctx context.Context, next types.BillingCycleStatus) error {
	if !c.Status.CanTransitionTo(next) {
		return ierr.NewErrorf("illegal billing cycle transition %s -> %s", c.Status, next).
			WithHint("Billing cycle cannot move to the requested status").
			WithReportableDetails(map[string]interface{}{
				"billing_cycle_id": c.ID,
				"from":             c.Status,
				"to":               next,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	c.Status = next
	if next == types.BillingCycleStatusCompleted {
		now := time.Now().UTC()
		c.CompletedAt = &now
		c.FailureReason = ""
		c.FailureMessage = ""
	}
	c.Touch(ctx)
	return nil
}

// EffectiveDueDate is the due date, falling back to the period end
func (c *BillingCycle) EffectiveDueDate() time.Time {
	if c.DueDate != nil {
		return *c.DueDate
	}
	return c.PeriodEnd
}

// MarkWarningEmitted sets the warning flag once. It reports false if the
// flag was already set.
func (c *BillingCycle) MarkWarningEmitted(at time.Time) bool {
	if c.WarningEmitted {
		return false
	}
	c.WarningEmitted = true
	c.WarningEmittedAt = &at
	return true
}

// MarkFinalized sets the finalized flag once. It reports false if the flag
// was already set.
func (c *BillingCycle) MarkFinalized(at time.Time) bool {
	if c.Finalized {
		return false
	}
	c.Finalized = true
	c.FinalizedAt = &at
	return true
}

func (c *BillingCycle) Copy() *BillingCycle {
	if c == nil {
		return nil
	}
	cp := *c
	cp.DueDate = copyTime(c.DueDate)
	cp.WarningEmittedAt = copyTime(c.WarningEmittedAt)
	cp.FinalizedAt = copyTime(c.FinalizedAt)
	cp.CompletedAt = copyTime(c.CompletedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
