package service

import (
	"context"

	"github.com/worksphere/billing/internal/auth"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/notification"
	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/domain/policy"
	"github.com/worksphere/billing/internal/domain/subscription"
	"github.com/worksphere/billing/internal/domain/taxrule"
	"github.com/worksphere/billing/internal/domain/tenant"
	"github.com/worksphere/billing/internal/domain/usage"
	"github.com/worksphere/billing/internal/integration"
	"github.com/worksphere/billing/internal/lock"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/sentry"
	"go.uber.org/fx"
)

// ServiceParams holds every dependency a billing service may need. Services
// embed it and build the services they call from the same params.
type ServiceParams struct {
	fx.In

	Logger *logger.Logger
	Config *config.Configuration
	Locker lock.Locker
	Cache  cache.Cache

	BillingCycleRepo billingcycle.Repository
	InvoiceRepo      invoice.Repository
	PaymentRepo      payment.Repository
	TokenRepo        payment.TokenRepository
	SubRepo          subscription.Repository
	AuditLogRepo     auditlog.Repository
	NotificationRepo notification.Repository

	EventPublisher events.Publisher
	Gateways       *integration.GatewayRegistry
	TaxSource      taxrule.Source
	InvoiceSigner  invoice.Signer
	TokenSigner    *auth.TokenSigner
	PolicyProvider policy.Provider
	Orchestrator   tenant.Orchestrator
	UsageSource    usage.Source

	Mailer notification.InvoiceMailer `optional:"true"`
	Sentry *sentry.Service            `optional:"true"`
}

// publish emits a side-channel event. Failures are logged and swallowed.
func (p ServiceParams) publish(ctx context.Context, event *events.BillingEvent) {
	if err := p.EventPublisher.Publish(ctx, event); err != nil {
		p.Logger.WithContext(ctx).Errorw("failed to publish billing event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
			"tenant_id", event.TenantID,
			"billing_cycle_id", event.BillingCycleID,
			"invoice_id", event.InvoiceID,
		)
	}
}

// audit writes an operation log entry. Failures are logged and swallowed.
func (p ServiceParams) audit(ctx context.Context, entry *auditlog.BillingOperationLog) {
	if err := p.AuditLogRepo.Create(ctx, entry); err != nil {
		p.Logger.WithContext(ctx).Errorw("failed to write audit log",
			"error", err,
			"operation_type", entry.OperationType,
			"tenant_id", entry.TenantID,
			"billing_cycle_id", entry.BillingCycleID,
		)
	}
}
