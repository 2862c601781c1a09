package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

const (
	tenantPaying = "tenant_paying"
	tenantNoCard = "tenant_nocard"
)

type SchedulerServiceSuite struct {
	testutil.BaseServiceTestSuite
	saga    BillingCycleService
	service SchedulerService
}

func TestSchedulerService(t *testing.T) {
	suite.Run(t, new(SchedulerServiceSuite))
}

func (s *SchedulerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetConfig().Billing.ShardCount = 2
	params := newTestParams(&s.BaseServiceTestSuite)
	s.saga = NewBillingCycleService(params)
	s.service = NewSchedulerService(params, s.saga, NewMemoryProcessedTracker())

	jan, janEnd := testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31)
	for _, tenantID := range []string{tenantPaying, tenantNoCard} {
		s.CreateSubscription(tenantID, jan, janEnd)
	}
	s.CreateToken(tenantPaying, true)
}

func (s *SchedulerServiceSuite) TearDownTest() {
	s.saga.Wait()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *SchedulerServiceSuite) cycleFor(tenantID string, start time.Time) *billingcycle.BillingCycle {
	_, end := CalendarMonth(start)
	c, err := s.GetStores().BillingCycleRepo.GetByPeriod(s.GetContext(), tenantID, start, end)
	s.Require().NoError(err)
	return c
}

func (s *SchedulerServiceSuite) TestScheduleBillingCycles_IsIdempotent() {
	start, end := testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31)
	tenants := []string{tenantPaying, tenantNoCard}

	first, err := s.service.ScheduleBillingCycles(s.GetContext(), tenants, start, end)
	s.Require().NoError(err)
	s.ElementsMatch(tenants, first.Created)
	s.Empty(first.Skipped)

	second, err := s.service.ScheduleBillingCycles(s.GetContext(), tenants, start, end)
	s.Require().NoError(err)
	s.Empty(second.Created)
	s.ElementsMatch(tenants, second.Skipped)

	s.Equal(2, s.GetPublisher().Count(types.EventBillingStarted))
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationScheduleCycle), 2)
	s.Equal(types.BillingCycleStatusScheduled, s.cycleFor(tenantPaying, start).Status)

	_, err = s.service.ScheduleBillingCycles(s.GetContext(), tenants, end, start)
	s.True(ierr.IsValidation(err))
}

func (s *SchedulerServiceSuite) TestRunBillingSweep_BillsEndedCyclesAndSchedulesCurrentMonth() {
	jan := testutil.Date(2026, time.January, 1)
	_, err := s.service.ScheduleBillingCycles(s.GetContext(), []string{tenantPaying, tenantNoCard}, jan, testutil.Date(2026, time.January, 31))
	s.Require().NoError(err)

	now := testutil.Date(2026, time.February, 3).Add(time.Hour)
	res, err := s.service.RunBillingSweep(s.GetContext(), now)
	s.Require().NoError(err)
	s.saga.Wait()

	s.Equal(SweepBilling, res.Sweep)
	s.Equal("run_billing_2026-02-03", res.RunID)
	s.Len(res.Shards, 2)
	s.Equal(1, res.Failed())

	s.Equal(types.BillingCycleStatusCompleted, s.cycleFor(tenantPaying, jan).Status)
	failed := s.cycleFor(tenantNoCard, jan)
	s.Equal(types.BillingCycleStatusFailed, failed.Status)
	s.Equal(types.ReasonNoPaymentToken, failed.FailureReason)

	feb := testutil.Date(2026, time.February, 1)
	s.Equal(types.BillingCycleStatusScheduled, s.cycleFor(tenantPaying, feb).Status)
	s.Equal(types.BillingCycleStatusScheduled, s.cycleFor(tenantNoCard, feb).Status)

	// a re-fired sweep on the same day only revisits the failed tenant
	again, err := s.service.RunBillingSweep(s.GetContext(), now)
	s.Require().NoError(err)
	skipped := 0
	for _, sh := range again.Shards {
		skipped += sh.Skipped
	}
	s.Equal(1, skipped)
	s.Equal(0, again.Failed())
	s.Equal(1, s.GetGateway().ChargeCalls)
}

func (s *SchedulerServiceSuite) TestRunRetryAndCancellationSweeps() {
	jan := testutil.Date(2026, time.January, 1)
	_, err := s.service.ScheduleBillingCycles(s.GetContext(), []string{tenantNoCard}, jan, testutil.Date(2026, time.January, 31))
	s.Require().NoError(err)
	_, err = s.service.RunBillingSweep(s.GetContext(), testutil.Date(2026, time.February, 2))
	s.Require().NoError(err)

	retry, err := s.service.RunRetrySweep(s.GetContext(), testutil.Date(2026, time.February, 3))
	s.Require().NoError(err)
	s.Require().NotNil(retry.Retry)
	s.Equal(1, retry.Retry.Retried)
	s.Equal(1, retry.Retry.Failed)
	s.Equal(1, s.cycleFor(tenantNoCard, jan).RetryCount)

	cancel, err := s.service.RunCancellationSweep(s.GetContext(), testutil.Date(2026, time.March, 1))
	s.Require().NoError(err)
	s.Equal(0, cancel.Failed())

	sub, err := s.GetStores().SubRepo.GetByTenantID(s.GetContext(), tenantNoCard)
	s.Require().NoError(err)
	s.True(sub.Suspended)
	s.Equal([]string{tenantNoCard}, s.GetOrchestrator().Suspended)
}

func (s *SchedulerServiceSuite) TestRunRenewalSweep() {
	_, err := s.service.ScheduleBillingCycles(s.GetContext(), []string{tenantPaying, tenantNoCard},
		testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31))
	s.Require().NoError(err)

	res, err := s.service.RunRenewalSweep(s.GetContext(), testutil.Date(2026, time.February, 1))
	s.Require().NoError(err)
	s.Equal(0, res.Failed())

	for _, tenantID := range []string{tenantPaying, tenantNoCard} {
		sub, err := s.GetStores().SubRepo.GetByTenantID(s.GetContext(), tenantID)
		s.Require().NoError(err)
		s.True(sub.CurrentPeriodEnd.Equal(testutil.Date(2026, time.February, 28)), tenantID)
	}
	s.Equal(2, s.GetPublisher().Count(types.EventPlanRenewed))
}

func TestCalendarMonth(t *testing.T) {
	start, end := CalendarMonth(time.Date(2024, time.February, 17, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, testutil.Date(2024, time.February, 1), start)
	assert.Equal(t, testutil.Date(2024, time.February, 29), end)

	start, end = CalendarMonth(testutil.Date(2026, time.December, 31))
	assert.Equal(t, testutil.Date(2026, time.December, 1), start)
	assert.Equal(t, testutil.Date(2026, time.December, 31), end)
}
