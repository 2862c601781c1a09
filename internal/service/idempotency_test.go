package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type IdempotencyServiceSuite struct {
	testutil.BaseServiceTestSuite
	service IdempotencyService
	cycle   *billingcycle.BillingCycle
}

func TestIdempotencyService(t *testing.T) {
	suite.Run(t, new(IdempotencyServiceSuite))
}

func (s *IdempotencyServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewIdempotencyService(newTestParams(&s.BaseServiceTestSuite))
	s.cycle = billingcycle.New(s.GetContext(), testutil.TestTenantID,
		testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31))
	s.Require().NoError(s.GetStores().BillingCycleRepo.Create(s.GetContext(), s.cycle))
}

func (s *IdempotencyServiceSuite) TestAcquire_Lifecycle() {
	ctx := s.GetContext()

	res, err := s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, false)
	s.Require().NoError(err)
	s.True(res.Acquired)
	s.Equal(types.BillingCycleStatusInProgress, res.Cycle.Status)

	res, err = s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, false)
	s.Require().NoError(err)
	s.False(res.Acquired)
	s.Equal(types.ReasonAlreadyInProgress, res.Reason)

	_, err = s.service.MarkFailed(ctx, testutil.TestTenantID, s.cycle.ID, types.ReasonPaymentFailed, "declined", false, nil)
	s.Require().NoError(err)

	res, err = s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, false)
	s.Require().NoError(err)
	s.Equal(types.ReasonAwaitingRetry, res.Reason)

	res, err = s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, true)
	s.Require().NoError(err)
	s.True(res.Acquired)

	cycle, err := s.service.MarkCompleted(ctx, testutil.TestTenantID, s.cycle.ID, func(c *billingcycle.BillingCycle) {
		c.InvoiceID = "inv_1"
	})
	s.Require().NoError(err)
	s.Equal(types.BillingCycleStatusCompleted, cycle.Status)
	s.Equal("inv_1", cycle.InvoiceID)
	s.Empty(cycle.FailureReason)

	done, err := s.service.IsCompleted(ctx, testutil.TestTenantID, s.cycle.ID)
	s.Require().NoError(err)
	s.True(done)

	res, err = s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, true)
	s.Require().NoError(err)
	s.Equal(types.ReasonAlreadyCompleted, res.Reason)
}

func (s *IdempotencyServiceSuite) TestAcquire_LockHeldIsASkip() {
	key := types.BillingCycleLockKey(testutil.TestTenantID, s.cycle.ID)
	err := s.GetLocker().WithLock(s.GetContext(), types.LockRequest{Key: key}, func(ctx context.Context) error {
		res, err := s.service.Acquire(ctx, testutil.TestTenantID, s.cycle.ID, false)
		s.Require().NoError(err)
		s.False(res.Acquired)
		s.Equal(types.ReasonLockHeld, res.Reason)
		return nil
	})
	s.Require().NoError(err)

	cycle, err := s.GetStores().BillingCycleRepo.Get(s.GetContext(), s.cycle.ID)
	s.Require().NoError(err)
	s.Equal(types.BillingCycleStatusScheduled, cycle.Status)
}

func (s *IdempotencyServiceSuite) TestAcquire_ForeignTenantIsNotFound() {
	_, err := s.service.Acquire(s.GetContext(), "tenant_other", s.cycle.ID, false)
	s.True(ierr.IsNotFound(err))
}

func (s *IdempotencyServiceSuite) TestMarkCompleted_RequiresInProgress() {
	_, err := s.service.MarkCompleted(s.GetContext(), testutil.TestTenantID, s.cycle.ID, nil)
	s.True(ierr.IsInvalidOperation(err))
}
