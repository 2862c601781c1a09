package models

import (
	"fmt"
	"time"

	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

const (
	WorkflowBillingCycle = "BillingCycleWorkflow"

	ActivityRunBillingCycle = "RunBillingCycleActivity"
	ActivityNotifyPayment   = "NotifyPaymentActivity"
)

// BillingCycleWorkflowInput starts one saga run for a (tenant, cycle)
type BillingCycleWorkflowInput struct {
	TenantID       string `json:"tenant_id"`
	BillingCycleID string `json:"billing_cycle_id"`
	Retry          bool   `json:"retry"`
}

func (i *BillingCycleWorkflowInput) Validate() error {
	if i.TenantID == "" {
		return ierr.NewError("tenant_id is required").
			WithHint("Billing cycle workflow needs a tenant").
			Mark(ierr.ErrValidation)
	}
	if i.BillingCycleID == "" {
		return ierr.NewError("billing_cycle_id is required").
			WithHint("Billing cycle workflow needs a cycle").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// WorkflowID is stable per cycle so a second start for the same cycle is
// rejected by the server while the first is still running.
func (i *BillingCycleWorkflowInput) WorkflowID() string {
	return fmt.Sprintf("billing-cycle-%s-%s", i.TenantID, i.BillingCycleID)
}

// BillingCycleRunOutput mirrors the saga result. FailureMessage is set when
// the run ended in a business failure that the retry sweep will pick up.
type BillingCycleRunOutput struct {
	CycleID        string                   `json:"cycle_id"`
	Status         types.BillingCycleStatus `json:"status"`
	InvoiceID      string                   `json:"invoice_id,omitempty"`
	PaymentID      string                   `json:"payment_id,omitempty"`
	Skipped        bool                     `json:"skipped"`
	Reason         types.ReasonCode         `json:"reason,omitempty"`
	FailureMessage string                   `json:"failure_message,omitempty"`
}

// ShouldNotify reports whether the run produced a fresh successful payment
func (o *BillingCycleRunOutput) ShouldNotify() bool {
	return o != nil &&
		!o.Skipped &&
		o.Status == types.BillingCycleStatusCompleted &&
		o.PaymentID != ""
}

type NotifyPaymentActivityInput struct {
	TenantID       string `json:"tenant_id"`
	BillingCycleID string `json:"billing_cycle_id"`
	InvoiceID      string `json:"invoice_id"`
	PaymentID      string `json:"payment_id"`
}

type NotifyPaymentActivityOutput struct {
	NotificationID string `json:"notification_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Attempts       int    `json:"attempts"`
	AlreadySent    bool   `json:"already_sent"`
}

// BillingCycleWorkflowResult is what the workflow returns. Business
// failures land in Error instead of failing the workflow.
type BillingCycleWorkflowResult struct {
	Run         *BillingCycleRunOutput `json:"run,omitempty"`
	Notified    bool                   `json:"notified"`
	Error       *string                `json:"error,omitempty"`
	CompletedAt time.Time              `json:"completed_at"`
}
