package workflows

import (
	"time"

	"github.com/worksphere/billing/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// BillingCycleWorkflow runs the billing saga for one cycle, then sends the
// payment notice as a separate activity.
//
// A run that failed on business grounds (declined card, missing token) has
// already been recorded on the cycle, so the workflow completes with the
// failure in its result and leaves the retry to the retry sweep.
func BillingCycleWorkflow(
	ctx workflow.Context,
	input models.BillingCycleWorkflowInput,
) (*models.BillingCycleWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting billing cycle workflow",
		"tenant_id", input.TenantID,
		"billing_cycle_id", input.BillingCycleID,
		"retry", input.Retry)

	if err := input.Validate(); err != nil {
		logger.Error("Invalid workflow input", "error", err)
		return nil, err
	}

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second * 10,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute * 5,
			MaximumAttempts:    3,
		},
	})

	var run models.BillingCycleRunOutput
	if err := workflow.ExecuteActivity(runCtx, models.ActivityRunBillingCycle, input).Get(runCtx, &run); err != nil {
		logger.Error("Billing cycle activity failed",
			"error", err,
			"billing_cycle_id", input.BillingCycleID)
		return nil, err
	}

	result := &models.BillingCycleWorkflowResult{Run: &run}
	if run.FailureMessage != "" {
		msg := run.FailureMessage
		result.Error = &msg
		result.CompletedAt = workflow.Now(ctx)
		logger.Warn("Billing cycle failed",
			"billing_cycle_id", input.BillingCycleID,
			"reason", run.Reason,
			"status", run.Status)
		return result, nil
	}

	if run.ShouldNotify() {
		// the notification service retries internally
		notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 2 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				MaximumAttempts: 1,
			},
		})
		var notified models.NotifyPaymentActivityOutput
		err := workflow.ExecuteActivity(notifyCtx, models.ActivityNotifyPayment, models.NotifyPaymentActivityInput{
			TenantID:       input.TenantID,
			BillingCycleID: run.CycleID,
			InvoiceID:      run.InvoiceID,
			PaymentID:      run.PaymentID,
		}).Get(notifyCtx, &notified)
		if err != nil {
			// payment is already captured; a lost notice does not undo it
			logger.Error("Payment notification failed",
				"error", err,
				"billing_cycle_id", input.BillingCycleID,
				"invoice_id", run.InvoiceID)
		} else {
			result.Notified = true
		}
	}

	logger.Info("Billing cycle workflow finished",
		"billing_cycle_id", input.BillingCycleID,
		"status", run.Status,
		"skipped", run.Skipped,
		"notified", result.Notified)

	result.CompletedAt = workflow.Now(ctx)
	return result, nil
}
