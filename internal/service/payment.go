package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

type InitiatePaymentRequest struct {
	TenantID       string
	BillingCycleID string
	InvoiceID      string
	Amount         decimal.Decimal
	Currency       string
	Token          *payment.Token
	Description    string
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.TenantID == "" || r.InvoiceID == "" {
		return ierr.NewError("tenant_id and invoice_id are required").
			WithHint("Payment needs a tenant and an invoice").
			Mark(ierr.ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return ierr.NewErrorf("payment amount must be positive, got %s", r.Amount).
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]interface{}{"invoice_id": r.InvoiceID}).
			Mark(ierr.ErrValidation)
	}
	if r.Token == nil {
		return ierr.NewError("payment token is required").
			WithHint("No payment token supplied").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentService charges invoices through the configured gateways
type PaymentService interface {
	// ValidateToken checks expiry, tenant binding, signature, reuse and
	// finally asks the provider.
	ValidateToken(ctx context.Context, token *payment.Token, tenantID string) error

	// InitiatePayment charges an invoice. An invoice that was already paid
	// returns its successful result without calling the gateway.
	InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*payment.Result, error)

	ReverseTransaction(ctx context.Context, transactionID, reason, actor string) (*payment.Result, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) ValidateToken(ctx context.Context, token *payment.Token, tenantID string) error {
	details := map[string]interface{}{
		"token_id":  token.ID,
		"tenant_id": tenantID,
	}

	if !token.IsValid(time.Now().UTC()) {
		return ierr.WithError(ErrTokenExpired).
			WithHint("Payment token is expired or revoked").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	if token.TenantID != tenantID {
		return ierr.WithError(ErrTokenTenantMismatch).
			WithHint("Payment token does not belong to this tenant").
			WithReportableDetails(details).
			Mark(ierr.ErrPermissionDenied)
	}
	if err := s.TokenSigner.Verify(token.Signature, tenantID, token.EncryptedPayload); err != nil {
		return ierr.WithError(ErrTokenInvalidSignature).
			WithMessage(err.Error()).
			WithHint("Payment token signature could not be verified").
			WithReportableDetails(details).
			Mark(ierr.ErrPermissionDenied)
	}
	if token.IsConsumed() {
		return ierr.WithError(ErrTokenReused).
			WithHint("Single use payment token was already charged").
			WithReportableDetails(details).
			Mark(ierr.ErrInvalidOperation)
	}

	gw, err := s.Gateways.Get(token.Provider)
	if err != nil {
		return err
	}
	vctx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.Gateway)
	defer cancel()
	if err := gw.ValidateToken(vctx, token); err != nil {
		b := ierr.WithError(ErrTokenRejectedByProvider).
			WithMessage(err.Error()).
			WithHint("Payment provider rejected the token").
			WithReportableDetails(details)
		if ierr.IsTimeout(err) || vctx.Err() != nil {
			return b.Mark(ierr.ErrTimeout)
		}
		return b.Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *paymentService) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*payment.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := s.Logger.WithContext(ctx).With(
		"tenant_id", req.TenantID,
		"billing_cycle_id", req.BillingCycleID,
		"invoice_id", req.InvoiceID,
	)

	paid, err := s.PaymentRepo.GetSuccessfulByInvoiceID(ctx, req.InvoiceID)
	if err == nil {
		log.Infow("invoice already paid, skipping gateway", "payment_id", paid.ID)
		return paid, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := s.ValidateToken(ctx, req.Token, req.TenantID); err != nil {
		log.Warnw("payment token rejected", "error", err, "token_id", req.Token.ID)
		mark := ierr.ErrValidation
		if ierr.IsTimeout(err) {
			mark = ierr.ErrTimeout
		}
		return nil, ierr.WithError(&PaymentFailure{
			Reason:      types.PaymentFailureInvalidToken,
			Recoverable: ierr.IsTimeout(err),
			Message:     err.Error(),
			Cause:       err,
		}).
			WithHint("Payment token is not usable").
			Mark(mark)
	}

	gw, err := s.Gateways.Get(req.Token.Provider)
	if err != nil {
		return nil, ierr.WithError(&PaymentFailure{
			Reason:  types.PaymentFailureProviderMissing,
			Message: err.Error(),
			Cause:   err,
		}).
			WithHintf("Payment provider %s is not configured", req.Token.Provider).
			Mark(ierr.ErrInvalidOperation)
	}

	result, err := s.resultFor(ctx, req)
	if err != nil {
		return nil, err
	}

	charge := &payment.ChargeRequest{
		TenantID:       req.TenantID,
		InvoiceID:      req.InvoiceID,
		PaymentID:      result.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Token:          req.Token,
		IdempotencyKey: fmt.Sprintf("%s-attempt%d", result.ID, result.Attempts+1),
		Description:    req.Description,
	}

	gctx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.Gateway)
	resp, gwErr := gw.ProcessPayment(gctx, charge)
	timedOut := gctx.Err() == context.DeadlineExceeded
	cancel()

	attempt := payment.Attempt{AttemptedAt: time.Now().UTC()}
	var failure *PaymentFailure
	var mark error

	switch {
	case gwErr != nil:
		attempt.Status = types.PaymentStatusFailed
		attempt.Error = gwErr.Error()
		failure, mark = classifyGatewayError(gwErr, timedOut)
		attempt.FailureReason = failure.Reason
	case resp.Status != types.PaymentStatusSuccess:
		reason := resp.FailureReason
		if reason == "" {
			reason = types.PaymentFailureDeclined
		}
		attempt.Status = types.PaymentStatusFailed
		attempt.FailureReason = reason
		attempt.Error = resp.Message
		failure = &PaymentFailure{Reason: reason, Message: resp.Message}
		mark = ierr.ErrHTTPClient
	default:
		attempt.Status = types.PaymentStatusSuccess
		attempt.TransactionID = resp.TransactionID
	}

	result.RecordAttempt(attempt)
	result.Status = attempt.Status
	result.TransactionID = attempt.TransactionID
	result.FailureReason = attempt.FailureReason
	result.Touch(ctx)
	if err := s.PaymentRepo.Update(ctx, result); err != nil {
		return nil, err
	}

	if failure != nil {
		failure.PaymentID = result.ID
		log.Warnw("payment failed",
			"payment_id", result.ID,
			"attempt", result.Attempts,
			"reason", failure.Reason,
			"recoverable", failure.Recoverable,
		)
		s.publish(ctx, events.NewBillingEvent(req.TenantID, types.EventPaymentFailed, map[string]interface{}{
			"payment_id":  result.ID,
			"reason":      failure.Reason,
			"recoverable": failure.Recoverable,
			"amount":      req.Amount.String(),
			"currency":    req.Currency,
		}).WithCycle(req.BillingCycleID).WithInvoice(req.InvoiceID))
		s.audit(ctx, auditlog.New(ctx, req.TenantID, types.OperationPayment,
			fmt.Sprintf("payment %s failed: %s", result.ID, failure.Reason)).
			WithCycle(req.BillingCycleID).
			WithInvoice(req.InvoiceID))
		return result, ierr.WithError(failure).
			WithHintf("Payment failed: %s", failure.Reason).
			WithReportableDetails(map[string]interface{}{
				"payment_id": result.ID,
				"invoice_id": req.InvoiceID,
				"attempt":    result.Attempts,
			}).
			Mark(mark)
	}

	if !req.Token.Reusable {
		now := time.Now().UTC()
		req.Token.UsedAt = &now
		req.Token.Touch(ctx)
		if err := s.TokenRepo.Update(ctx, req.Token); err != nil {
			log.Errorw("failed to mark payment token used", "error", err, "token_id", req.Token.ID)
		}
	}

	log.Infow("payment succeeded",
		"payment_id", result.ID,
		"transaction_id", result.TransactionID,
		"amount", req.Amount.String(),
	)
	s.publish(ctx, events.NewBillingEvent(req.TenantID, types.EventPaymentSuccess, map[string]interface{}{
		"payment_id":     result.ID,
		"transaction_id": result.TransactionID,
		"amount":         req.Amount.String(),
		"currency":       req.Currency,
	}).WithCycle(req.BillingCycleID).WithInvoice(req.InvoiceID))
	s.audit(ctx, auditlog.New(ctx, req.TenantID, types.OperationPayment,
		fmt.Sprintf("payment %s succeeded: %s %s", result.ID, req.Amount.StringFixed(2), req.Currency)).
		WithCycle(req.BillingCycleID).
		WithInvoice(req.InvoiceID))
	return result, nil
}

// resultFor reuses the latest unsuccessful result of the invoice so attempts
// accumulate on one record.
func (s *paymentService) resultFor(ctx context.Context, req *InitiatePaymentRequest) (*payment.Result, error) {
	latest, err := s.PaymentRepo.GetLatestByInvoiceID(ctx, req.InvoiceID)
	if err == nil && !latest.IsSuccessful() {
		// stored as PENDING before the gateway sees the charge
		latest.Status = types.PaymentStatusPending
		latest.FailureReason = ""
		latest.TokenID = req.Token.ID
		latest.Provider = req.Token.Provider
		latest.Touch(ctx)
		if err := s.PaymentRepo.Update(ctx, latest); err != nil {
			return nil, err
		}
		return latest, nil
	}
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = req.TenantID
	result := &payment.Result{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		BillingCycleID: req.BillingCycleID,
		InvoiceID:      req.InvoiceID,
		TokenID:        req.Token.ID,
		Provider:       req.Token.Provider,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         types.PaymentStatusPending,
		BaseModel:      base,
	}
	if err := s.PaymentRepo.Create(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func classifyGatewayError(err error, timedOut bool) (*PaymentFailure, error) {
	switch {
	case timedOut || ierr.IsTimeout(err):
		return &PaymentFailure{Reason: types.PaymentFailureGatewayTimeout, Recoverable: true, Message: err.Error()}, ierr.ErrTimeout
	case ierr.IsSystem(err):
		return &PaymentFailure{Reason: types.PaymentFailureGatewayError, Recoverable: true, Message: err.Error()}, ierr.ErrSystem
	default:
		return &PaymentFailure{Reason: types.PaymentFailureGatewayError, Message: err.Error()}, ierr.ErrHTTPClient
	}
}

func (s *paymentService) ReverseTransaction(ctx context.Context, transactionID, reason, actor string) (*payment.Result, error) {
	if transactionID == "" {
		return nil, ierr.NewError("transaction_id is required").
			WithHint("Reversal needs a transaction id").
			Mark(ierr.ErrValidation)
	}

	result, err := s.PaymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccessful() {
		return nil, ierr.NewErrorf("payment %s is %s", result.ID, result.Status).
			WithHint("Only successful payments can be reversed").
			WithReportableDetails(map[string]interface{}{"transaction_id": transactionID}).
			Mark(ierr.ErrInvalidOperation)
	}
	if result.Reversed {
		return result, nil
	}

	gw, err := s.Gateways.Get(result.Provider)
	if err != nil {
		return nil, err
	}
	gctx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.Gateway)
	defer cancel()
	if err := gw.ReversePayment(gctx, &payment.ReversalRequest{
		TransactionID: transactionID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Reason:        reason,
	}); err != nil {
		s.Logger.WithContext(ctx).Errorw("payment reversal failed",
			"error", err,
			"payment_id", result.ID,
			"transaction_id", transactionID,
		)
		return nil, err
	}

	now := time.Now().UTC()
	result.Reversed = true
	result.ReversedAt = &now
	result.ReversalReason = reason
	result.ReversedBy = actor
	result.Touch(ctx)
	if err := s.PaymentRepo.Update(ctx, result); err != nil {
		return nil, err
	}

	s.audit(ctx, auditlog.New(ctx, result.TenantID, types.OperationPaymentReversed,
		fmt.Sprintf("transaction %s reversed by %s: %s", transactionID, actor, reason)).
		WithCycle(result.BillingCycleID).
		WithInvoice(result.InvoiceID))
	s.publish(ctx, events.NewBillingEvent(result.TenantID, types.EventPaymentReversed, map[string]interface{}{
		"payment_id":     result.ID,
		"transaction_id": transactionID,
		"reason":         reason,
		"actor":          actor,
	}).WithCycle(result.BillingCycleID).WithInvoice(result.InvoiceID))
	return result, nil
}
