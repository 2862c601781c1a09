package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PaymentService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPaymentService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *PaymentServiceSuite) request(tok *payment.Token, invoiceID string) *InitiatePaymentRequest {
	return &InitiatePaymentRequest{
		TenantID:       testutil.TestTenantID,
		BillingCycleID: "bc_1",
		InvoiceID:      invoiceID,
		Amount:         testutil.Money("1190.00"),
		Currency:       "USD",
		Token:          tok,
	}
}

func (s *PaymentServiceSuite) TestInitiatePayment_Success() {
	tok := s.CreateToken(testutil.TestTenantID, false)

	res, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, res.Status)
	s.NotEmpty(res.TransactionID)
	s.Equal(1, res.Attempts)
	s.Len(res.AttemptLog, 1)
	s.Equal(1, s.GetGateway().ChargeCalls)
	s.Equal(res.ID+"-attempt1", s.GetGateway().Charges[0].IdempotencyKey)

	stored, err := s.GetStores().TokenRepo.Get(s.GetContext(), tok.ID)
	s.Require().NoError(err)
	s.NotNil(stored.UsedAt)
	s.Equal(1, s.GetPublisher().Count(types.EventPaymentSuccess))
}

func (s *PaymentServiceSuite) TestInitiatePayment_IdempotentOnInvoice() {
	tok := s.CreateToken(testutil.TestTenantID, true)

	first, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)
	second, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(first.TransactionID, second.TransactionID)
	s.Equal(1, s.GetGateway().ChargeCalls)
}

func (s *PaymentServiceSuite) TestInitiatePayment_ReusedTokenNeverReachesGateway() {
	tok := s.CreateToken(testutil.TestTenantID, false)
	_, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)
	s.GetGateway().Reset()

	used, err := s.GetStores().TokenRepo.Get(s.GetContext(), tok.ID)
	s.Require().NoError(err)

	err = s.service.ValidateToken(s.GetContext(), used, testutil.TestTenantID)
	s.True(errors.Is(err, ErrTokenReused))

	_, err = s.service.InitiatePayment(s.GetContext(), s.request(used, "inv_2"))
	s.Require().Error(err)
	s.True(errors.Is(err, ErrTokenReused))
	pf, ok := AsPaymentFailure(err)
	s.Require().True(ok)
	s.Equal(types.PaymentFailureInvalidToken, pf.Reason)
	s.Equal(0, s.GetGateway().ChargeCalls)
	s.Equal(0, s.GetGateway().ValidateCalls)
}

func (s *PaymentServiceSuite) TestValidateToken_Failures() {
	ctx := s.GetContext()

	expired := s.CreateToken(testutil.TestTenantID, true)
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.True(errors.Is(s.service.ValidateToken(ctx, expired, testutil.TestTenantID), ErrTokenExpired))

	revoked := s.CreateToken(testutil.TestTenantID, true)
	revoked.Revoked = true
	s.True(errors.Is(s.service.ValidateToken(ctx, revoked, testutil.TestTenantID), ErrTokenExpired))

	foreign := s.CreateToken("tenant_other", true)
	err := s.service.ValidateToken(ctx, foreign, testutil.TestTenantID)
	s.True(errors.Is(err, ErrTokenTenantMismatch))
	s.True(ierr.IsPermissionDenied(err))

	tampered := s.CreateToken(testutil.TestTenantID, true)
	tampered.EncryptedPayload = "cus_evil:pm_card"
	s.True(errors.Is(s.service.ValidateToken(ctx, tampered, testutil.TestTenantID), ErrTokenInvalidSignature))

	s.GetGateway().ValidateErr = ierr.NewError("card detached").Mark(ierr.ErrHTTPClient)
	valid := s.CreateToken(testutil.TestTenantID, true)
	s.True(errors.Is(s.service.ValidateToken(ctx, valid, testutil.TestTenantID), ErrTokenRejectedByProvider))
}

func (s *PaymentServiceSuite) TestInitiatePayment_DeclineIsNotRecoverable() {
	tok := s.CreateToken(testutil.TestTenantID, false)
	s.GetGateway().DeclineReason = types.PaymentFailureInsufficientFunds

	res, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().Error(err)
	pf, ok := AsPaymentFailure(err)
	s.Require().True(ok)
	s.Equal(types.PaymentFailureInsufficientFunds, pf.Reason)
	s.False(pf.Recoverable)
	s.Equal(res.ID, pf.PaymentID)
	s.Equal(types.PaymentStatusFailed, res.Status)

	// a declined charge does not consume the token
	stored, err := s.GetStores().TokenRepo.Get(s.GetContext(), tok.ID)
	s.Require().NoError(err)
	s.Nil(stored.UsedAt)
	s.Equal(1, s.GetPublisher().Count(types.EventPaymentFailed))
}

func (s *PaymentServiceSuite) TestInitiatePayment_TimeoutIsRecoverableAndAttemptsAccumulate() {
	tok := s.CreateToken(testutil.TestTenantID, true)
	s.GetGateway().ChargeErr = ierr.WithError(context.DeadlineExceeded).
		WithHint("gateway timed out").
		Mark(ierr.ErrTimeout)

	_, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().Error(err)
	pf, ok := AsPaymentFailure(err)
	s.Require().True(ok)
	s.Equal(types.PaymentFailureGatewayTimeout, pf.Reason)
	s.True(pf.Recoverable)
	s.True(ierr.IsTimeout(err))

	s.GetGateway().ChargeErr = nil
	res, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)
	s.Equal(pf.PaymentID, res.ID)
	s.Equal(2, res.Attempts)
	s.Equal(res.ID+"-attempt2", s.GetGateway().Charges[1].IdempotencyKey)
}

func (s *PaymentServiceSuite) TestInitiatePayment_ReusedResultIsPendingDuringCharge() {
	tok := s.CreateToken(testutil.TestTenantID, true)
	s.GetGateway().DeclineReason = types.PaymentFailureInsufficientFunds

	failed, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().Error(err)
	s.Equal(types.PaymentStatusFailed, failed.Status)

	var during *payment.Result
	s.GetGateway().DeclineReason = ""
	s.GetGateway().OnCharge = func(req *payment.ChargeRequest) {
		stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), req.PaymentID)
		s.Require().NoError(err)
		during = stored
	}

	res, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)
	s.Equal(failed.ID, res.ID)

	s.Require().NotNil(during)
	s.Equal(types.PaymentStatusPending, during.Status)
	s.Empty(during.FailureReason)
	s.Equal(1, during.Attempts)

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), res.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, stored.Status)
	s.Equal(2, stored.Attempts)
}

func (s *PaymentServiceSuite) TestInitiatePayment_RejectsNonPositiveAmount() {
	tok := s.CreateToken(testutil.TestTenantID, true)
	req := s.request(tok, "inv_1")
	req.Amount = testutil.Money("0")

	_, err := s.service.InitiatePayment(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
	s.Equal(0, s.GetGateway().ChargeCalls)
}

func (s *PaymentServiceSuite) TestReverseTransaction() {
	tok := s.CreateToken(testutil.TestTenantID, true)
	res, err := s.service.InitiatePayment(s.GetContext(), s.request(tok, "inv_1"))
	s.Require().NoError(err)

	s.GetGateway().ReverseErr = ierr.NewError("refund rejected").Mark(ierr.ErrHTTPClient)
	_, err = s.service.ReverseTransaction(s.GetContext(), res.TransactionID, "duplicate", "ops@worksphere")
	s.Require().Error(err)
	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), res.ID)
	s.Require().NoError(err)
	s.False(stored.Reversed)

	s.GetGateway().ReverseErr = nil
	reversed, err := s.service.ReverseTransaction(s.GetContext(), res.TransactionID, "duplicate", "ops@worksphere")
	s.Require().NoError(err)
	s.True(reversed.Reversed)
	s.Equal("ops@worksphere", reversed.ReversedBy)
	s.NotNil(reversed.ReversedAt)

	// already reversed is a no-op
	_, err = s.service.ReverseTransaction(s.GetContext(), res.TransactionID, "again", "ops@worksphere")
	s.Require().NoError(err)
	s.Equal(2, s.GetGateway().ReverseCalls)
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationPaymentReversed), 1)
	s.Equal(1, s.GetPublisher().Count(types.EventPaymentReversed))
}
