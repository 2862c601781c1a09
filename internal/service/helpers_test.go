package service

import (
	"github.com/worksphere/billing/internal/testutil"
)

// newTestParams builds ServiceParams from the base suite's fakes
func newTestParams(b *testutil.BaseServiceTestSuite) ServiceParams {
	stores := b.GetStores()
	return ServiceParams{
		Logger:           b.GetLogger(),
		Config:           b.GetConfig(),
		Locker:           b.GetLocker(),
		Cache:            b.GetCache(),
		BillingCycleRepo: stores.BillingCycleRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		PaymentRepo:      stores.PaymentRepo,
		TokenRepo:        stores.TokenRepo,
		SubRepo:          stores.SubRepo,
		AuditLogRepo:     stores.AuditLogRepo,
		NotificationRepo: stores.NotificationRepo,
		EventPublisher:   b.GetPublisher(),
		Gateways:         b.GetGateways(),
		TaxSource:        b.GetTaxSource(),
		InvoiceSigner:    b.GetSigner(),
		TokenSigner:      b.GetTokenSigner(),
		PolicyProvider:   NewConfigPolicyProvider(b.GetConfig(), b.GetCache(), b.GetLogger()),
		Orchestrator:     b.GetOrchestrator(),
		UsageSource:      b.GetUsageSource(),
		Mailer:           b.GetMailer(),
	}
}
