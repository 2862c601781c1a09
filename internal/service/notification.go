package service

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/notification"
	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/domain/tenant"
	"github.com/worksphere/billing/internal/types"
)

// NotificationService tells the orchestrator an invoice was paid and mails
// the invoice to the tenant. Failures never affect billing.
type NotificationService interface {
	NotifyAfterPayment(ctx context.Context, cycle *billingcycle.BillingCycle, inv *invoice.Invoice, result *payment.Result) (*notification.Log, error)
}

type notificationService struct {
	ServiceParams
}

func NewNotificationService(params ServiceParams) NotificationService {
	return &notificationService{ServiceParams: params}
}

func (s *notificationService) NotifyAfterPayment(ctx context.Context, cycle *billingcycle.BillingCycle, inv *invoice.Invoice, result *payment.Result) (*notification.Log, error) {
	key := notification.Key(cycle.TenantID, cycle.ID, inv.ID, result.TransactionID)
	log := s.Logger.WithContext(ctx).With(
		"tenant_id", cycle.TenantID,
		"billing_cycle_id", cycle.ID,
		"invoice_id", inv.ID,
		"transaction_id", result.TransactionID,
	)

	sent, err := s.NotificationRepo.HasSuccessful(ctx, key)
	if err != nil {
		return nil, err
	}
	if sent {
		log.Debugw("notification already sent")
		return nil, nil
	}

	notice := &tenant.PaymentNotice{
		TenantID:       cycle.TenantID,
		BillingCycleID: cycle.ID,
		InvoiceID:      inv.ID,
		TransactionID:  result.TransactionID,
		Amount:         inv.TotalAmount.StringFixed(2),
		Currency:       inv.Currency,
	}

	entry := notification.NewLog(key, cycle.TenantID, cycle.ID, inv.ID, result.TransactionID)
	notify := func() error {
		entry.Attempts++
		nctx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.Orchestrator)
		defer cancel()
		if err := s.Orchestrator.NotifyPayment(nctx, notice); err != nil {
			log.Warnw("payment notification attempt failed", "attempt", entry.Attempts, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(notify, backoff.WithContext(newRetryBackOff(s.Config.Billing.Notification), ctx)); err != nil {
		entry.Status = notification.StatusFailed
		entry.LastError = err.Error()
	} else {
		entry.Status = notification.StatusSent
	}

	if err := s.NotificationRepo.Create(ctx, entry); err != nil {
		log.Errorw("failed to persist notification log", "error", err)
	}

	s.mailInvoice(ctx, inv)

	s.audit(ctx, auditlog.New(ctx, cycle.TenantID, types.OperationNotification,
		fmt.Sprintf("status=%s attempts=%d", entry.Status, entry.Attempts)).
		WithCycle(cycle.ID).
		WithInvoice(inv.ID))
	log.Infow("payment notification finished", "status", entry.Status, "attempts", entry.Attempts)
	return entry, nil
}

func (s *notificationService) mailInvoice(ctx context.Context, inv *invoice.Invoice) {
	if s.Mailer == nil {
		return
	}
	sub, err := s.SubRepo.GetByTenantID(ctx, inv.TenantID)
	if err != nil || sub.Email == "" {
		return
	}
	if err := s.Mailer.SendInvoice(ctx, sub.Email, inv); err != nil {
		s.Logger.WithContext(ctx).Warnw("failed to mail invoice",
			"error", err,
			"invoice_id", inv.ID,
			"tenant_id", inv.TenantID,
		)
	}
}
