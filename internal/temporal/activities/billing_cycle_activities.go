package activities

import (
	"context"

	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/service"
	"github.com/worksphere/billing/internal/temporal/models"
	"github.com/worksphere/billing/internal/types"
	"go.temporal.io/sdk/temporal"
)

// BillingCycleActivities runs the billing saga and its follow-up notice as
// separate activities so the notice gets its own timeout and history entry.
type BillingCycleActivities struct {
	serviceParams service.ServiceParams
	billing       service.BillingCycleService
	notifications service.NotificationService
	logger        *logger.Logger
}

func NewBillingCycleActivities(serviceParams service.ServiceParams, logger *logger.Logger) *BillingCycleActivities {
	return &BillingCycleActivities{
		serviceParams: serviceParams,
		billing:       service.NewBillingCycleService(serviceParams, service.WithDeferredNotification()),
		notifications: service.NewNotificationService(serviceParams),
		logger:        logger,
	}
}

// RunBillingCycleActivity runs one saga pass. A run that ended in a
// recorded business failure returns its output with a nil error; only
// infrastructure errors go back to the server for retry.
func (a *BillingCycleActivities) RunBillingCycleActivity(
	ctx context.Context,
	input models.BillingCycleWorkflowInput,
) (*models.BillingCycleRunOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "validation", err)
	}
	ctx = types.SetTenantID(ctx, input.TenantID)
	ctx = types.SetBillingCycleID(ctx, input.BillingCycleID)

	run := a.billing.RunBillingCycle
	if input.Retry {
		run = a.billing.RetryCycle
	}

	res, err := run(ctx, input.TenantID, input.BillingCycleID)
	if res == nil {
		if err == nil {
			err = ierr.NewError("billing run returned no result").Mark(ierr.ErrInternal)
		}
		a.logger.WithContext(ctx).Errorw("billing cycle activity failed",
			"tenant_id", input.TenantID,
			"billing_cycle_id", input.BillingCycleID,
			"error", err)
		if ierr.IsValidation(err) || ierr.IsNotFound(err) || ierr.IsPermissionDenied(err) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "billing_cycle", err)
		}
		return nil, err
	}

	out := &models.BillingCycleRunOutput{
		CycleID:   res.CycleID,
		Status:    res.Status,
		InvoiceID: res.InvoiceID,
		PaymentID: res.PaymentID,
		Skipped:   res.Skipped,
		Reason:    res.Reason,
	}
	if err != nil {
		out.FailureMessage = err.Error()
	}

	a.logger.WithContext(ctx).Infow("billing cycle activity finished",
		"tenant_id", input.TenantID,
		"billing_cycle_id", input.BillingCycleID,
		"status", out.Status,
		"skipped", out.Skipped,
		"reason", out.Reason)
	return out, nil
}

// NotifyPaymentActivity sends the post-payment notice for a completed run.
// Dedup happens in the notification service, so a replay is harmless.
func (a *BillingCycleActivities) NotifyPaymentActivity(
	ctx context.Context,
	input models.NotifyPaymentActivityInput,
) (*models.NotifyPaymentActivityOutput, error) {
	if input.TenantID == "" || input.BillingCycleID == "" || input.InvoiceID == "" || input.PaymentID == "" {
		err := ierr.NewError("tenant, cycle, invoice and payment ids are required").Mark(ierr.ErrValidation)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "validation", err)
	}
	ctx = types.SetTenantID(ctx, input.TenantID)
	ctx = types.SetBillingCycleID(ctx, input.BillingCycleID)

	cycle, err := a.serviceParams.BillingCycleRepo.Get(ctx, input.BillingCycleID)
	if err != nil {
		return nil, err
	}
	if cycle.TenantID != input.TenantID {
		err := ierr.NewError("billing cycle belongs to another tenant").
			WithReportableDetails(map[string]interface{}{"billing_cycle_id": input.BillingCycleID}).
			Mark(ierr.ErrPermissionDenied)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "permission_denied", err)
	}
	inv, err := a.serviceParams.InvoiceRepo.Get(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	result, err := a.serviceParams.PaymentRepo.Get(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}

	entry, err := a.notifications.NotifyAfterPayment(ctx, cycle, inv, result)
	if err != nil {
		a.logger.WithContext(ctx).Errorw("payment notification activity failed",
			"billing_cycle_id", input.BillingCycleID,
			"invoice_id", input.InvoiceID,
			"error", err)
		return nil, err
	}
	if entry == nil {
		return &models.NotifyPaymentActivityOutput{AlreadySent: true}, nil
	}
	return &models.NotifyPaymentActivityOutput{
		NotificationID: entry.ID,
		Status:         string(entry.Status),
		Attempts:       entry.Attempts,
	}, nil
}
