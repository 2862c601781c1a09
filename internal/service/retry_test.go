package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type RetryServiceSuite struct {
	testutil.BaseServiceTestSuite
	saga    BillingCycleService
	service RetryService
	cycle   *billingcycle.BillingCycle
}

func TestRetryService(t *testing.T) {
	suite.Run(t, new(RetryServiceSuite))
}

func (s *RetryServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetConfig().Billing.MaxRetries = 3
	params := newTestParams(&s.BaseServiceTestSuite)
	s.saga = NewBillingCycleService(params)
	s.service = NewRetryService(params, s.saga)

	start, end := testutil.Date(2026, time.February, 1), testutil.Date(2026, time.February, 28)
	s.CreateSubscription(testutil.TestTenantID, start, end)
	s.cycle = billingcycle.New(s.GetContext(), testutil.TestTenantID, start, end)
	s.Require().NoError(s.GetStores().BillingCycleRepo.Create(s.GetContext(), s.cycle))

	// no token yet, so the first run fails
	_, err := s.saga.RunBillingCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().Error(err)
}

func (s *RetryServiceSuite) TearDownTest() {
	s.saga.Wait()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *RetryServiceSuite) stored() *billingcycle.BillingCycle {
	c, err := s.GetStores().BillingCycleRepo.Get(s.GetContext(), s.cycle.ID)
	s.Require().NoError(err)
	return c
}

func (s *RetryServiceSuite) TestRetryFailed_ExhaustsAfterMaxRetries() {
	for i := 1; i <= 3; i++ {
		summary, err := s.service.RetryFailed(s.GetContext())
		s.Require().NoError(err)
		s.Equal(1, summary.Retried)
		s.Equal(1, summary.Failed)
		s.Equal(i, s.stored().RetryCount)
	}

	summary, err := s.service.RetryFailed(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, summary.Retried)
	s.Equal(1, summary.Exhausted)

	cycle := s.stored()
	s.Equal(types.BillingCycleStatusFailedExhausted, cycle.Status)
	s.Equal(types.ReasonNoPaymentToken, cycle.FailureReason)
	s.Equal(1, s.GetPublisher().Count(types.EventBillingFailedExhausted))
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationRetryExhausted), 1)

	// exhausted cycles are never picked up again
	summary, err = s.service.RetryFailed(s.GetContext())
	s.Require().NoError(err)
	s.Equal(RetrySummary{}, *summary)

	res, err := s.saga.RetryCycle(s.GetContext(), testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.True(res.Skipped)
	s.Equal(types.ReasonRetriesExhausted, res.Reason)
}

func (s *RetryServiceSuite) TestRetryTenant_SucceedsOnceTokenExists() {
	s.CreateToken(testutil.TestTenantID, false)

	other, err := s.service.RetryTenant(s.GetContext(), "tenant_other")
	s.Require().NoError(err)
	s.Equal(0, other.Retried)

	summary, err := s.service.RetryTenant(s.GetContext(), testutil.TestTenantID)
	s.Require().NoError(err)
	s.Equal(1, summary.Retried)
	s.Equal(1, summary.Succeeded)

	cycle := s.stored()
	s.Equal(types.BillingCycleStatusCompleted, cycle.Status)
	s.Equal(0, cycle.RetryCount)
	s.NotEmpty(cycle.PaymentID)
}

func (s *RetryServiceSuite) TestRetryFailed_ValidationFailureIsNeverRetried() {
	start, end := testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 31)
	sub := s.CreateSubscription("tenant_unpriced", start, end)
	sub.PlanCode = "nonexistent"
	s.Require().NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))
	s.CreateToken("tenant_unpriced", true)

	cycle := billingcycle.New(s.GetContext(), "tenant_unpriced", start, end)
	s.Require().NoError(s.GetStores().BillingCycleRepo.Create(s.GetContext(), cycle))
	failedBefore := s.GetPublisher().Count(types.EventBillingFailed)

	res, err := s.saga.RunBillingCycle(s.GetContext(), "tenant_unpriced", cycle.ID)
	s.Require().Error(err)
	s.Equal(types.ReasonCalculationFailed, res.Reason)
	s.Equal(types.BillingCycleStatusFailedExhausted, res.Status)
	s.Equal(failedBefore+1, s.GetPublisher().Count(types.EventBillingFailed))
	s.Equal(1, s.GetPublisher().Count(types.EventBillingFailedExhausted))
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationRetryExhausted), 1)

	for i := 0; i < 5; i++ {
		summary, err := s.service.RetryTenant(s.GetContext(), "tenant_unpriced")
		s.Require().NoError(err)
		s.Equal(0, summary.Retried)
		s.Equal(0, summary.Exhausted)
	}

	stored, err := s.GetStores().BillingCycleRepo.Get(s.GetContext(), cycle.ID)
	s.Require().NoError(err)
	s.Equal(types.BillingCycleStatusFailedExhausted, stored.Status)
	s.Equal(0, stored.RetryCount)
	s.Equal(types.ReasonCalculationFailed, stored.FailureReason)
	s.Equal(failedBefore+1, s.GetPublisher().Count(types.EventBillingFailed))
	s.Equal(0, s.GetGateway().ChargeCalls)
}
