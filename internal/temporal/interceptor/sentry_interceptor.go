package interceptor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/worksphere/billing/internal/sentry"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"
)

// SentryInterceptor reports failed billing workflows and activities.
// Workflow code must stay deterministic, so workflow failures are only
// captured after the inner execution has returned.
type SentryInterceptor struct {
	interceptor.InterceptorBase
	sentry *sentry.Service
}

func NewSentryInterceptor(sentryService *sentry.Service) *SentryInterceptor {
	return &SentryInterceptor{sentry: sentryService}
}

func (s *SentryInterceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	return &workflowInboundInterceptor{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{Next: next},
		sentry:                         s.sentry,
	}
}

func (s *SentryInterceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	return &activityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{Next: next},
		sentry:                         s.sentry,
	}
}

type workflowInboundInterceptor struct {
	interceptor.WorkflowInboundInterceptorBase
	sentry *sentry.Service
}

func (w *workflowInboundInterceptor) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (interface{}, error) {
	result, err := w.Next.ExecuteWorkflow(ctx, in)
	if err == nil || !w.sentry.IsEnabled() || workflow.IsReplaying(ctx) {
		return result, err
	}

	info := workflow.GetInfo(ctx)
	workflow.GetLogger(ctx).Error("Billing workflow failed",
		"workflow_type", info.WorkflowType.Name,
		"workflow_id", info.WorkflowExecution.ID,
		"run_id", info.WorkflowExecution.RunID,
		"error", err)
	w.sentry.CaptureException(context.Background(),
		fmt.Errorf("temporal workflow %s failed: %w", info.WorkflowType.Name, err),
		map[string]string{
			"workflow_type": info.WorkflowType.Name,
			"workflow_id":   info.WorkflowExecution.ID,
			"run_id":        info.WorkflowExecution.RunID,
		})
	return result, err
}

type activityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	sentry *sentry.Service
}

func (a *activityInboundInterceptor) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	if !a.sentry.IsEnabled() {
		return a.Next.ExecuteActivity(ctx, in)
	}

	info := activity.GetInfo(ctx)
	span, spanCtx := a.sentry.StartSpan(ctx, "temporal.activity."+info.ActivityType.Name, map[string]interface{}{
		"activity_id": info.ActivityID,
		"workflow_id": info.WorkflowExecution.ID,
		"run_id":      info.WorkflowExecution.RunID,
		"task_queue":  info.TaskQueue,
		"attempt":     info.Attempt,
	})

	result, err := a.Next.ExecuteActivity(spanCtx, in)
	sentry.FinishSpan(span, err)

	if err != nil {
		a.sentry.CaptureException(spanCtx, err, map[string]string{
			"activity_type": info.ActivityType.Name,
			"workflow_id":   info.WorkflowExecution.ID,
			"attempt":       strconv.Itoa(int(info.Attempt)),
		})
	}
	return result, err
}
