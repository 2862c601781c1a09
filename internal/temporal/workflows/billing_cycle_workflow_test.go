package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/temporal/models"
	"github.com/worksphere/billing/internal/types"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

type BillingCycleWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env         *testsuite.TestWorkflowEnvironment
	runCalls    int
	notifyCalls int
}

func TestBillingCycleWorkflow(t *testing.T) {
	suite.Run(t, new(BillingCycleWorkflowSuite))
}

func (s *BillingCycleWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.runCalls = 0
	s.notifyCalls = 0

	s.env.RegisterWorkflow(BillingCycleWorkflow)
	s.env.RegisterActivityWithOptions(
		func(ctx context.Context, in models.BillingCycleWorkflowInput) (*models.BillingCycleRunOutput, error) {
			return nil, nil
		},
		activity.RegisterOptions{Name: models.ActivityRunBillingCycle},
	)
	s.env.RegisterActivityWithOptions(
		func(ctx context.Context, in models.NotifyPaymentActivityInput) (*models.NotifyPaymentActivityOutput, error) {
			return nil, nil
		},
		activity.RegisterOptions{Name: models.ActivityNotifyPayment},
	)
}

func (s *BillingCycleWorkflowSuite) input() models.BillingCycleWorkflowInput {
	return models.BillingCycleWorkflowInput{TenantID: "tenant_a", BillingCycleID: "bc_1"}
}

func (s *BillingCycleWorkflowSuite) onRun(out *models.BillingCycleRunOutput, err error) {
	s.env.OnActivity(models.ActivityRunBillingCycle, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in models.BillingCycleWorkflowInput) (*models.BillingCycleRunOutput, error) {
			s.runCalls++
			return out, err
		})
}

func (s *BillingCycleWorkflowSuite) onNotify(err error) {
	s.env.OnActivity(models.ActivityNotifyPayment, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in models.NotifyPaymentActivityInput) (*models.NotifyPaymentActivityOutput, error) {
			s.notifyCalls++
			s.Equal("inv_1", in.InvoiceID)
			s.Equal("pay_1", in.PaymentID)
			if err != nil {
				return nil, err
			}
			return &models.NotifyPaymentActivityOutput{NotificationID: "ntf_1", Status: "SENT", Attempts: 1}, nil
		})
}

func (s *BillingCycleWorkflowSuite) result() *models.BillingCycleWorkflowResult {
	s.True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var res models.BillingCycleWorkflowResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	return &res
}

func (s *BillingCycleWorkflowSuite) TestCompletedRunIsNotified() {
	s.onRun(&models.BillingCycleRunOutput{
		CycleID:   "bc_1",
		Status:    types.BillingCycleStatusCompleted,
		InvoiceID: "inv_1",
		PaymentID: "pay_1",
	}, nil)
	s.onNotify(nil)

	s.env.ExecuteWorkflow(BillingCycleWorkflow, s.input())

	res := s.result()
	s.True(res.Notified)
	s.Nil(res.Error)
	s.Equal(types.BillingCycleStatusCompleted, res.Run.Status)
	s.Equal(1, s.runCalls)
	s.Equal(1, s.notifyCalls)
}

func (s *BillingCycleWorkflowSuite) TestNotifyFailureDoesNotFailWorkflow() {
	s.onRun(&models.BillingCycleRunOutput{
		CycleID:   "bc_1",
		Status:    types.BillingCycleStatusCompleted,
		InvoiceID: "inv_1",
		PaymentID: "pay_1",
	}, nil)
	s.onNotify(errors.New("orchestrator down"))

	s.env.ExecuteWorkflow(BillingCycleWorkflow, s.input())

	res := s.result()
	s.False(res.Notified)
	s.Nil(res.Error)
	s.Equal(1, s.notifyCalls)
}

func (s *BillingCycleWorkflowSuite) TestSkippedRunIsNotNotified() {
	s.onRun(&models.BillingCycleRunOutput{
		CycleID:   "bc_1",
		Status:    types.BillingCycleStatusCompleted,
		InvoiceID: "inv_1",
		PaymentID: "pay_1",
		Skipped:   true,
		Reason:    types.ReasonAlreadyCompleted,
	}, nil)
	s.onNotify(nil)

	s.env.ExecuteWorkflow(BillingCycleWorkflow, s.input())

	res := s.result()
	s.False(res.Notified)
	s.True(res.Run.Skipped)
	s.Equal(0, s.notifyCalls)
}

func (s *BillingCycleWorkflowSuite) TestBusinessFailureIsReturnedInResult() {
	s.onRun(&models.BillingCycleRunOutput{
		CycleID:        "bc_1",
		Status:         types.BillingCycleStatusFailed,
		InvoiceID:      "inv_1",
		Reason:         types.ReasonPaymentFailed,
		FailureMessage: "card declined",
	}, nil)
	s.onNotify(nil)

	s.env.ExecuteWorkflow(BillingCycleWorkflow, s.input())

	res := s.result()
	s.Require().NotNil(res.Error)
	s.Equal("card declined", *res.Error)
	s.False(res.Notified)
	s.Equal(0, s.notifyCalls)
}

func (s *BillingCycleWorkflowSuite) TestInvalidInput() {
	s.env.ExecuteWorkflow(BillingCycleWorkflow, models.BillingCycleWorkflowInput{TenantID: "tenant_a"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Equal(0, s.runCalls)
}

func (s *BillingCycleWorkflowSuite) TestActivityErrorFailsWorkflow() {
	s.onRun(nil, errors.New("database unavailable"))

	s.env.ExecuteWorkflow(BillingCycleWorkflow, s.input())

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Equal(3, s.runCalls)
}
