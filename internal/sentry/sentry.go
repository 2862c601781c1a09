// Package sentry reports billing failures to Sentry when enabled
package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

// Service is a no-op when Sentry is disabled
type Service struct {
	enabled bool
	logger  *logger.Logger
}

func NewSentryService(cfg *config.Configuration, log *logger.Logger) (*Service, error) {
	s := &Service{logger: log}
	if !cfg.Sentry.Enabled || cfg.Sentry.DSN == "" {
		return s, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		SampleRate:       cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	s.enabled = true
	log.Infow("sentry initialized", "environment", cfg.Sentry.Environment)
	return s, nil
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.enabled
}

// CaptureException reports err tagged with the tenant and cycle from ctx
// plus any extra tags.
func (s *Service) CaptureException(ctx context.Context, err error, tags map[string]string) {
	if !s.IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if tenantID := types.GetTenantID(ctx); tenantID != "" {
			scope.SetTag("tenant_id", tenantID)
		}
		if cycleID := types.GetBillingCycleID(ctx); cycleID != "" {
			scope.SetTag("billing_cycle_id", cycleID)
		}
		if requestID := types.GetRequestID(ctx); requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// StartSpan opens a performance span, or returns nil when disabled
func (s *Service) StartSpan(ctx context.Context, operation string, data map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.IsEnabled() {
		return nil, ctx
	}
	span := sentry.StartSpan(ctx, operation)
	for k, v := range data {
		span.SetData(k, v)
	}
	return span, span.Context()
}

func FinishSpan(span *sentry.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()
}

func (s *Service) Flush(timeout time.Duration) {
	if s.IsEnabled() {
		sentry.Flush(timeout)
	}
}
