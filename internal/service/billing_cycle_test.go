package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/notification"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type BillingCycleServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingCycleService
	cycle   *billingcycle.BillingCycle
}

func TestBillingCycleService(t *testing.T) {
	suite.Run(t, new(BillingCycleServiceSuite))
}

func (s *BillingCycleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewBillingCycleService(newTestParams(&s.BaseServiceTestSuite))

	start, end := testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31)
	s.CreateSubscription(testutil.TestTenantID, start, end)
	s.cycle = billingcycle.New(s.GetContext(), testutil.TestTenantID, start, end)
	s.Require().NoError(s.GetStores().BillingCycleRepo.Create(s.GetContext(), s.cycle))
}

func (s *BillingCycleServiceSuite) stored() *billingcycle.BillingCycle {
	c, err := s.GetStores().BillingCycleRepo.Get(s.GetContext(), s.cycle.ID)
	s.Require().NoError(err)
	return c
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_Completes() {
	s.CreateToken(testutil.TestTenantID, false)

	res, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.service.Wait()

	s.False(res.Skipped)
	s.Equal(types.BillingCycleStatusCompleted, res.Status)
	s.NotEmpty(res.InvoiceID)
	s.NotEmpty(res.PaymentID)

	cycle := s.stored()
	s.Equal(types.BillingCycleStatusCompleted, cycle.Status)
	s.Equal(res.InvoiceID, cycle.InvoiceID)
	s.Require().NotNil(cycle.DueDate)
	s.True(cycle.DueDate.Equal(testutil.Date(2026, time.January, 31)))

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), res.InvoiceID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
	s.True(inv.TotalAmount.Equal(testutil.Money("1200.00")))

	pub := s.GetPublisher()
	s.Equal(1, pub.Count(types.EventInvoiceGenerated))
	s.Equal(1, pub.Count(types.EventPaymentSuccess))
	s.Equal(1, pub.Count(types.EventBillingCompleted))
	s.Equal(0, pub.Count(types.EventBillingFailed))

	// the notice goes out after the cycle completed
	s.Len(s.GetOrchestrator().Notices, 1)
	s.Equal([]string{"billing@" + testutil.TestTenantID + ".test:" + res.InvoiceID}, s.GetMailer().Sent)
	logs := s.GetStores().NotificationRepo.All()
	s.Require().Len(logs, 1)
	s.Equal(notification.StatusSent, logs[0].Status)
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_SecondRunIsSkipped() {
	s.CreateToken(testutil.TestTenantID, true)

	first, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	second, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.service.Wait()

	s.True(second.Skipped)
	s.Equal(types.ReasonAlreadyCompleted, second.Reason)
	s.Equal(first.InvoiceID, second.InvoiceID)
	s.Equal(first.PaymentID, second.PaymentID)

	n, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), &types.InvoiceHistoryFilter{TenantID: testutil.TestTenantID})
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(1, s.GetGateway().ChargeCalls)
	s.Equal(1, s.GetPublisher().Count(types.EventBillingCompleted))
	s.Len(s.GetOrchestrator().Notices, 1)
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_NoPaymentToken() {
	res, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().Error(err)
	s.Equal(types.BillingCycleStatusFailed, res.Status)
	s.Equal(types.ReasonNoPaymentToken, res.Reason)
	s.NotEmpty(res.InvoiceID)

	cycle := s.stored()
	s.Equal(types.BillingCycleStatusFailed, cycle.Status)
	s.Equal(types.ReasonNoPaymentToken, cycle.FailureReason)
	s.Equal(0, cycle.RetryCount)
	s.Equal(1, s.GetPublisher().Count(types.EventBillingFailed))
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationBillingFailed), 1)

	// only the retry path picks up a failed cycle
	again, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.True(again.Skipped)
	s.Equal(types.ReasonAwaitingRetry, again.Reason)
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_SigningFailureLeavesNoInvoice() {
	s.CreateToken(testutil.TestTenantID, false)
	s.GetSigner().Err = errors.New("signing service offline")

	res, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().Error(err)
	s.Equal(types.ReasonInvoiceFailed, res.Reason)
	s.Empty(res.InvoiceID)

	_, err = s.GetStores().InvoiceRepo.GetByBillingCycleID(s.GetContext(), s.cycle.ID)
	s.Error(err)
	s.Equal(0, s.GetGateway().ChargeCalls)
	s.Equal(0, s.GetPublisher().Count(types.EventInvoiceGenerated))
}

func (s *BillingCycleServiceSuite) TestRetryCycle_RecoversAfterDecline() {
	s.CreateToken(testutil.TestTenantID, true)
	s.GetGateway().DeclineReason = types.PaymentFailureInsufficientFunds

	failed, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().Error(err)
	s.Equal(types.ReasonPaymentFailed, failed.Reason)
	s.NotEmpty(failed.PaymentID)

	s.GetGateway().DeclineReason = ""
	res, err := s.service.RetryCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.service.Wait()

	s.Equal(types.BillingCycleStatusCompleted, res.Status)
	s.Equal(failed.InvoiceID, res.InvoiceID)
	s.Equal(failed.PaymentID, res.PaymentID)

	cycle := s.stored()
	s.Equal(0, cycle.RetryCount)
	s.Empty(cycle.FailureReason)

	pay, err := s.GetStores().PaymentRepo.Get(s.GetContext(), res.PaymentID)
	s.Require().NoError(err)
	s.Equal(2, pay.Attempts)

	// the retry reuses the stored invoice without announcing it again
	s.Equal(1, s.GetPublisher().Count(types.EventInvoiceGenerated))
	s.Equal(1, s.GetSigner().Calls)
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_ProratesLateSubscription() {
	s.CreateToken(testutil.TestTenantID, false)
	sub, err := s.GetStores().SubRepo.GetByTenantID(s.GetContext(), testutil.TestTenantID)
	s.Require().NoError(err)
	sub.CreatedAt = testutil.Date(2026, time.January, 17)
	s.Require().NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	res, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.service.Wait()

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), res.InvoiceID)
	s.Require().NoError(err)
	s.True(inv.BaseAmount.IsZero())
	s.True(inv.TotalAmount.Equal(testutil.Money("580.65")), inv.TotalAmount.String())
}

func (s *BillingCycleServiceSuite) TestRunBillingCycle_UnknownCycle() {
	_, err := s.service.RunBillingCycle(s.GetContext(), testutil.TestTenantID, "bc_missing")
	s.Error(err)

	_, err = s.service.RunBillingCycle(s.GetContext(), "", s.cycle.ID)
	s.Error(err)
}
