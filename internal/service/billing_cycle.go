package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/domain/subscription"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/sentry"
	"github.com/worksphere/billing/internal/types"
)

// BillingRunResult is the outcome of one saga run
type BillingRunResult struct {
	CycleID   string                   `json:"cycle_id"`
	Status    types.BillingCycleStatus `json:"status"`
	InvoiceID string                   `json:"invoice_id,omitempty"`
	PaymentID string                   `json:"payment_id,omitempty"`
	Skipped   bool                     `json:"skipped"`
	Reason    types.ReasonCode         `json:"reason,omitempty"`
}

// BillingCycleService runs the billing saga for one (tenant, cycle):
// acquire, calculate, invoice, emit, pay, notify, complete.
type BillingCycleService interface {
	// RunBillingCycle bills a SCHEDULED cycle. Cycles that are running or
	// finished are skipped without side effects.
	RunBillingCycle(ctx context.Context, tenantID, cycleID string) (*BillingRunResult, error)

	// RetryCycle re-runs a FAILED cycle. A failed retry counts against the
	// cycle's retry budget.
	RetryCycle(ctx context.Context, tenantID, cycleID string) (*BillingRunResult, error)

	// Wait blocks until detached notifications started by this service finish
	Wait()
}

type billingCycleService struct {
	ServiceParams

	// deferNotify leaves the payment notice to the caller, e.g. a workflow
	// that runs it as its own activity.
	deferNotify   bool
	notifications sync.WaitGroup
}

type BillingCycleOption func(*billingCycleService)

// WithDeferredNotification skips the detached notification stage
func WithDeferredNotification() BillingCycleOption {
	return func(s *billingCycleService) {
		s.deferNotify = true
	}
}

func NewBillingCycleService(params ServiceParams, opts ...BillingCycleOption) BillingCycleService {
	s := &billingCycleService{ServiceParams: params}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// executionContext carries the state of one run between stages
type executionContext struct {
	tenantID string
	retry    bool

	cycle   *billingcycle.BillingCycle
	sub     *subscription.Subscription
	request *BillingRequest
	calc    *Calculation
	invoice *invoice.Invoice
	payment *payment.Result

	// invoiceCreated is false when the run picked up the invoice of an
	// earlier attempt
	invoiceCreated bool
}

type stageResult struct {
	ok     bool
	reason types.ReasonCode
	err    error
}

func proceed() stageResult {
	return stageResult{ok: true}
}

func fail(reason types.ReasonCode, err error) stageResult {
	return stageResult{reason: reason, err: err}
}

type stage struct {
	name string
	run  func(ctx context.Context, ec *executionContext) stageResult
}

func (s *billingCycleService) RunBillingCycle(ctx context.Context, tenantID, cycleID string) (*BillingRunResult, error) {
	return s.run(ctx, tenantID, cycleID, false)
}

func (s *billingCycleService) RetryCycle(ctx context.Context, tenantID, cycleID string) (*BillingRunResult, error) {
	return s.run(ctx, tenantID, cycleID, true)
}

func (s *billingCycleService) Wait() {
	s.notifications.Wait()
}

func (s *billingCycleService) run(ctx context.Context, tenantID, cycleID string, retry bool) (*BillingRunResult, error) {
	if tenantID == "" || cycleID == "" {
		return nil, ierr.NewError("tenant_id and billing_cycle_id are required").
			WithHint("Billing run needs a tenant and a cycle").
			Mark(ierr.ErrValidation)
	}
	ctx = types.SetTenantID(ctx, tenantID)
	ctx = types.SetBillingCycleID(ctx, cycleID)

	span, ctx := s.Sentry.StartSpan(ctx, "billing.run_cycle", map[string]interface{}{
		"tenant_id":        tenantID,
		"billing_cycle_id": cycleID,
		"retry":            retry,
	})

	acquired, err := NewIdempotencyService(s.ServiceParams).Acquire(ctx, tenantID, cycleID, retry)
	if err != nil {
		sentry.FinishSpan(span, err)
		return nil, err
	}
	if !acquired.Acquired {
		s.Logger.WithContext(ctx).Infow("skipping billing cycle",
			"tenant_id", tenantID,
			"billing_cycle_id", cycleID,
			"reason", acquired.Reason,
		)
		sentry.FinishSpan(span, nil)
		res := &BillingRunResult{CycleID: cycleID, Skipped: true, Reason: acquired.Reason}
		if acquired.Cycle != nil {
			res.Status = acquired.Cycle.Status
			res.InvoiceID = acquired.Cycle.InvoiceID
			res.PaymentID = acquired.Cycle.PaymentID
		}
		return res, nil
	}

	ec := &executionContext{tenantID: tenantID, retry: retry, cycle: acquired.Cycle}
	stages := []stage{
		{"calculate", s.calculate},
		{"invoice", s.generateInvoice},
		{"emit", s.emitInvoice},
		{"pay", s.pay},
		{"notify", s.notify},
	}
	for _, st := range stages {
		res := st.run(ctx, ec)
		if !res.ok {
			out, err := s.failRun(ctx, ec, st.name, res)
			sentry.FinishSpan(span, res.err)
			return out, err
		}
	}

	out, err := s.complete(ctx, ec)
	sentry.FinishSpan(span, err)
	return out, err
}

func (s *billingCycleService) calculate(ctx context.Context, ec *executionContext) stageResult {
	sub, err := s.SubRepo.GetByTenantID(ctx, ec.tenantID)
	if err != nil {
		return fail(types.ReasonCalculationFailed, err)
	}
	ec.sub = sub

	cycle := ec.cycle
	req := &BillingRequest{
		TenantID:   ec.tenantID,
		PlanCode:   sub.PlanCode,
		PlanType:   sub.PlanType,
		Country:    sub.Country,
		Currency:   sub.Currency,
		CycleStart: cycle.PeriodStart,
		CycleEnd:   cycle.PeriodEnd,
	}
	if req.Currency == "" {
		req.Currency = s.Config.Billing.Currency
	}

	// a subscription started or cancelled inside the cycle only pays for the days it ran
	if created := types.StartOfDay(sub.CreatedAt); created.After(types.StartOfDay(cycle.PeriodStart)) && !created.After(types.StartOfDay(cycle.PeriodEnd)) {
		req.UsageStart = &created
	}
	if sub.CancelledAt != nil {
		cancelled := types.StartOfDay(*sub.CancelledAt)
		if !cancelled.Before(types.StartOfDay(cycle.PeriodStart)) && cancelled.Before(types.StartOfDay(cycle.PeriodEnd)) {
			req.UsageEnd = &cancelled
		}
	}

	if req.UsageUnits == nil {
		snap, err := NewUsageService(s.ServiceParams).FetchUsage(ctx, ec.tenantID, cycle.PeriodStart, cycle.PeriodEnd)
		if err != nil {
			return fail(types.ReasonCalculationFailed, err)
		}
		units := snap.Units()
		req.UsageUnits = &units
	}
	ec.request = req

	calc, err := NewBillingCalculationService(s.ServiceParams).Calculate(ctx, req)
	if err != nil {
		return fail(types.ReasonCalculationFailed, err)
	}
	ec.calc = calc
	return proceed()
}

func (s *billingCycleService) generateInvoice(ctx context.Context, ec *executionContext) stageResult {
	inv, created, err := NewInvoiceService(s.ServiceParams).Assemble(ctx, &AssembleInvoiceRequest{
		Cycle:    ec.cycle,
		Currency: ec.calc.Currency,
		Base:     ec.calc.Base,
		Prorated: ec.calc.Prorated,
		Tax:      ec.calc.Tax.Amount,
		TaxRate:  ec.calc.Tax.Rate,
	})
	if err != nil {
		return fail(types.ReasonInvoiceFailed, err)
	}
	ec.invoice = inv
	ec.invoiceCreated = created
	return proceed()
}

func (s *billingCycleService) emitInvoice(ctx context.Context, ec *executionContext) stageResult {
	inv := ec.invoice
	if !ec.invoiceCreated {
		return proceed()
	}
	s.publish(ctx, events.NewBillingEvent(ec.tenantID, types.EventInvoiceGenerated, map[string]interface{}{
		"invoice_id": inv.ID,
		"total":      inv.TotalAmount.StringFixed(2),
		"currency":   inv.Currency,
		"due_at":     inv.DueAt,
	}).WithCycle(ec.cycle.ID).WithInvoice(inv.ID))
	return proceed()
}

func (s *billingCycleService) pay(ctx context.Context, ec *executionContext) stageResult {
	invoiceSvc := NewInvoiceService(s.ServiceParams)
	inv := ec.invoice

	if !inv.TotalAmount.IsPositive() {
		if err := invoiceSvc.MarkPaid(ctx, inv); err != nil {
			return fail(types.ReasonPaymentFailed, err)
		}
		return proceed()
	}

	token, err := s.tokenFor(ctx, ec.sub)
	if err != nil {
		if ierr.IsNotFound(err) {
			return fail(types.ReasonNoPaymentToken, err)
		}
		return fail(types.ReasonPaymentFailed, err)
	}

	result, err := NewPaymentService(s.ServiceParams).InitiatePayment(ctx, &InitiatePaymentRequest{
		TenantID:       ec.tenantID,
		BillingCycleID: ec.cycle.ID,
		InvoiceID:      inv.ID,
		Amount:         inv.TotalAmount,
		Currency:       inv.Currency,
		Token:          token,
		Description:    fmt.Sprintf("Invoice %s", inv.ID),
	})
	if result != nil {
		ec.payment = result
	}
	if err != nil {
		return fail(types.ReasonPaymentFailed, err)
	}

	if err := invoiceSvc.MarkPaid(ctx, inv); err != nil {
		return fail(types.ReasonPaymentFailed, err)
	}
	return proceed()
}

func (s *billingCycleService) tokenFor(ctx context.Context, sub *subscription.Subscription) (*payment.Token, error) {
	if sub.PaymentTokenID != "" {
		return s.TokenRepo.Get(ctx, sub.PaymentTokenID)
	}
	return s.TokenRepo.GetActiveForTenant(ctx, sub.TenantID)
}

// notify hands the payment notice to a detached goroutine. Its outcome never
// reaches the cycle.
func (s *billingCycleService) notify(ctx context.Context, ec *executionContext) stageResult {
	if s.deferNotify || ec.payment == nil || !ec.payment.IsSuccessful() {
		return proceed()
	}
	cycle, inv, result := ec.cycle.Copy(), ec.invoice.Copy(), ec.payment.Copy()

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notificationBudget())
		defer cancel()
		if _, err := NewNotificationService(s.ServiceParams).NotifyAfterPayment(nctx, cycle, inv, result); err != nil {
			s.Logger.WithContext(nctx).Warnw("payment notification failed",
				"error", err,
				"tenant_id", cycle.TenantID,
				"billing_cycle_id", cycle.ID,
				"invoice_id", inv.ID,
			)
		}
	}()
	return proceed()
}

// notificationBudget covers every attempt plus the waits between them
func (s *billingCycleService) notificationBudget() time.Duration {
	cfg := s.Config.Billing
	attempts := cfg.Notification.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	budget := time.Duration(attempts) * (cfg.Timeouts.Orchestrator + cfg.Notification.MaxInterval)
	if budget < cfg.Timeouts.Notification {
		budget = cfg.Timeouts.Notification
	}
	return budget
}

func (s *billingCycleService) complete(ctx context.Context, ec *executionContext) (*BillingRunResult, error) {
	inv := ec.invoice
	cycle, err := NewIdempotencyService(s.ServiceParams).MarkCompleted(ctx, ec.tenantID, ec.cycle.ID, func(c *billingcycle.BillingCycle) {
		c.InvoiceID = inv.ID
		due := inv.DueAt
		c.DueDate = &due
		if ec.payment != nil {
			c.PaymentID = ec.payment.ID
		}
	})
	if err != nil {
		return s.failRun(ctx, ec, "complete", fail(types.ReasonPaymentFailed, err))
	}
	ec.cycle = cycle

	s.publish(ctx, events.NewBillingEvent(ec.tenantID, types.EventBillingCompleted, map[string]interface{}{
		"invoice_id": cycle.InvoiceID,
		"payment_id": cycle.PaymentID,
		"total":      inv.TotalAmount.StringFixed(2),
		"currency":   inv.Currency,
	}).WithCycle(cycle.ID).WithInvoice(inv.ID))
	s.audit(ctx, auditlog.New(ctx, ec.tenantID, types.OperationBillingCompleted,
		fmt.Sprintf("invoice=%s payment=%s retry=%t", cycle.InvoiceID, cycle.PaymentID, ec.retry)).
		WithCycle(cycle.ID).
		WithInvoice(inv.ID))

	if ec.sub != nil && ec.sub.Suspended {
		if _, err := NewNonPaymentService(s.ServiceParams).ReactivateIfPaid(ctx, ec.tenantID, cycle.ID); err != nil {
			s.Logger.WithContext(ctx).Warnw("reactivation after payment failed",
				"error", err,
				"tenant_id", ec.tenantID,
				"billing_cycle_id", cycle.ID,
			)
		}
	}

	s.Logger.WithContext(ctx).Infow("billing cycle completed",
		"tenant_id", ec.tenantID,
		"billing_cycle_id", cycle.ID,
		"invoice_id", cycle.InvoiceID,
		"payment_id", cycle.PaymentID,
		"total", inv.TotalAmount.String(),
	)
	return &BillingRunResult{
		CycleID:   cycle.ID,
		Status:    cycle.Status,
		InvoiceID: cycle.InvoiceID,
		PaymentID: cycle.PaymentID,
	}, nil
}

func (s *billingCycleService) failRun(ctx context.Context, ec *executionContext, stageName string, res stageResult) (*BillingRunResult, error) {
	invoiceID, paymentID := "", ""
	if ec.invoice != nil {
		invoiceID = ec.invoice.ID
	}
	if ec.payment != nil {
		paymentID = ec.payment.ID
	}
	if pf, ok := AsPaymentFailure(res.err); ok && pf.PaymentID != "" {
		paymentID = pf.PaymentID
	}
	message := ""
	if res.err != nil {
		message = res.err.Error()
	}

	s.Logger.WithContext(ctx).Errorw("billing cycle failed",
		"error", res.err,
		"stage", stageName,
		"reason", res.reason,
		"tenant_id", ec.tenantID,
		"billing_cycle_id", ec.cycle.ID,
		"invoice_id", invoiceID,
		"payment_id", paymentID,
		"retry", ec.retry,
	)
	s.Sentry.CaptureException(ctx, res.err, map[string]string{
		"stage":  stageName,
		"reason": res.reason.String(),
	})

	cycle, markErr := NewIdempotencyService(s.ServiceParams).MarkFailed(ctx, ec.tenantID, ec.cycle.ID, res.reason, message, ec.retry, func(c *billingcycle.BillingCycle) {
		if invoiceID != "" {
			c.InvoiceID = invoiceID
		}
		if paymentID != "" {
			c.PaymentID = paymentID
		}
		if ec.invoice != nil {
			due := ec.invoice.DueAt
			c.DueDate = &due
		}
	})
	if markErr != nil {
		s.Logger.WithContext(ctx).Errorw("failed to mark billing cycle failed",
			"error", markErr,
			"tenant_id", ec.tenantID,
			"billing_cycle_id", ec.cycle.ID,
		)
		return nil, ierr.WithError(markErr).
			WithHint("Billing cycle failed and its status could not be recorded").
			Mark(ierr.ErrDatabase)
	}

	payload := map[string]interface{}{
		"stage":       stageName,
		"reason":      res.reason,
		"retry_count": cycle.RetryCount,
	}
	if pf, ok := AsPaymentFailure(res.err); ok {
		payload["payment_failure_reason"] = pf.Reason
		payload["recoverable"] = pf.Recoverable
	}
	s.publish(ctx, events.NewBillingEvent(ec.tenantID, types.EventBillingFailed, payload).
		WithCycle(cycle.ID).
		WithInvoice(invoiceID))
	s.audit(ctx, auditlog.New(ctx, ec.tenantID, types.OperationBillingFailed,
		fmt.Sprintf("stage=%s reason=%s retry_count=%d", stageName, res.reason, cycle.RetryCount)).
		WithCycle(cycle.ID).
		WithInvoice(invoiceID))

	// rejected input fails the same way on every attempt
	if isPermanentFailure(res.err) {
		exhausted, err := s.exhaustCycle(ctx, ec.tenantID, cycle.ID)
		if err != nil {
			s.Logger.WithContext(ctx).Errorw("failed to exhaust billing cycle",
				"error", err,
				"tenant_id", ec.tenantID,
				"billing_cycle_id", cycle.ID,
			)
		} else if exhausted != nil {
			cycle = exhausted
		}
	}

	return &BillingRunResult{
		CycleID:   cycle.ID,
		Status:    cycle.Status,
		InvoiceID: invoiceID,
		PaymentID: paymentID,
		Reason:    res.reason,
	}, res.err
}

// isPermanentFailure reports validation errors outside the payment stage.
// Payment failures keep their own recoverable flag and stay retryable.
func isPermanentFailure(err error) bool {
	if _, ok := AsPaymentFailure(err); ok {
		return false
	}
	return ierr.IsValidation(err)
}
