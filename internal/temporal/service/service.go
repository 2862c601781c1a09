package service

import (
	"context"

	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	billing "github.com/worksphere/billing/internal/service"
	"github.com/worksphere/billing/internal/temporal/activities"
	temporalInterceptor "github.com/worksphere/billing/internal/temporal/interceptor"
	"github.com/worksphere/billing/internal/temporal/models"
	"github.com/worksphere/billing/internal/temporal/workflows"
	"github.com/worksphere/billing/internal/types"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// TemporalService owns the client and the billing worker. It also
// implements service.BillingCycleService so the sweeps can hand cycles to
// the workflow instead of running the saga in-process.
type TemporalService struct {
	client    client.Client
	worker    worker.Worker
	taskQueue string
	logger    *logger.Logger
}

var _ billing.BillingCycleService = (*TemporalService)(nil)

func NewTemporalService(params billing.ServiceParams) (*TemporalService, error) {
	cfg := params.Config.Temporal
	if !cfg.Enabled {
		return nil, ierr.NewError("temporal is disabled").
			WithHint("Enable temporal in the configuration to use workflow execution").
			Mark(ierr.ErrInvalidOperation)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    params.Logger.GetLeveledLogger(),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not connect to temporal at %s", cfg.Address).
			Mark(ierr.ErrSystem)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{
			temporalInterceptor.NewSentryInterceptor(params.Sentry),
		},
	})
	registerBilling(w, activities.NewBillingCycleActivities(params, params.Logger))

	return &TemporalService{
		client:    c,
		worker:    w,
		taskQueue: cfg.TaskQueue,
		logger:    params.Logger,
	}, nil
}

func registerBilling(w worker.Worker, acts *activities.BillingCycleActivities) {
	w.RegisterWorkflowWithOptions(workflows.BillingCycleWorkflow, workflow.RegisterOptions{
		Name: models.WorkflowBillingCycle,
	})
	w.RegisterActivityWithOptions(acts.RunBillingCycleActivity, activity.RegisterOptions{
		Name: models.ActivityRunBillingCycle,
	})
	w.RegisterActivityWithOptions(acts.NotifyPaymentActivity, activity.RegisterOptions{
		Name: models.ActivityNotifyPayment,
	})
}

func (s *TemporalService) Start(ctx context.Context) error {
	if err := s.worker.Start(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to start the billing worker").
			Mark(ierr.ErrSystem)
	}
	s.logger.Infow("temporal worker started", "task_queue", s.taskQueue)
	return nil
}

func (s *TemporalService) Stop(ctx context.Context) error {
	s.worker.Stop()
	s.client.Close()
	s.logger.Infow("temporal worker stopped", "task_queue", s.taskQueue)
	return nil
}

// StartBillingCycle starts the workflow without waiting for it
func (s *TemporalService) StartBillingCycle(ctx context.Context, tenantID, cycleID string, retry bool) (client.WorkflowRun, error) {
	input := models.BillingCycleWorkflowInput{TenantID: tenantID, BillingCycleID: cycleID, Retry: retry}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        input.WorkflowID(),
		TaskQueue: s.taskQueue,
	}, models.WorkflowBillingCycle, input)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to start billing cycle workflow").
			WithReportableDetails(map[string]interface{}{
				"tenant_id":        tenantID,
				"billing_cycle_id": cycleID,
			}).
			Mark(ierr.ErrSystem)
	}
	s.logger.WithContext(ctx).Infow("started billing cycle workflow",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"tenant_id", tenantID,
		"billing_cycle_id", cycleID)
	return run, nil
}

func (s *TemporalService) RunBillingCycle(ctx context.Context, tenantID, cycleID string) (*billing.BillingRunResult, error) {
	return s.runAndWait(ctx, tenantID, cycleID, false)
}

func (s *TemporalService) RetryCycle(ctx context.Context, tenantID, cycleID string) (*billing.BillingRunResult, error) {
	return s.runAndWait(ctx, tenantID, cycleID, true)
}

// Wait is a no-op; notifications run inside the workflow
func (s *TemporalService) Wait() {}

func (s *TemporalService) runAndWait(ctx context.Context, tenantID, cycleID string, retry bool) (*billing.BillingRunResult, error) {
	run, err := s.StartBillingCycle(ctx, tenantID, cycleID, retry)
	if err != nil {
		return nil, err
	}
	var out models.BillingCycleWorkflowResult
	if err := run.Get(ctx, &out); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Billing cycle workflow failed").
			Mark(ierr.ErrSystem)
	}
	return toRunResult(&out)
}

func toRunResult(out *models.BillingCycleWorkflowResult) (*billing.BillingRunResult, error) {
	if out.Run == nil {
		return nil, ierr.NewError("billing cycle workflow returned no run").Mark(ierr.ErrInternal)
	}
	res := &billing.BillingRunResult{
		CycleID:   out.Run.CycleID,
		Status:    out.Run.Status,
		InvoiceID: out.Run.InvoiceID,
		PaymentID: out.Run.PaymentID,
		Skipped:   out.Run.Skipped,
		Reason:    out.Run.Reason,
	}
	if out.Error != nil {
		return res, ierr.NewError(*out.Error).
			WithReportableDetails(map[string]interface{}{"reason": out.Run.Reason}).
			Mark(reasonSentinel(out.Run.Reason))
	}
	return res, nil
}

func reasonSentinel(reason types.ReasonCode) error {
	switch reason {
	case types.ReasonPaymentFailed:
		return ierr.ErrHTTPClient
	case types.ReasonInvoiceFailed, types.ReasonCalculationFailed:
		return ierr.ErrSystem
	default:
		return ierr.ErrInternal
	}
}
