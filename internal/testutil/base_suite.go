package testutil

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/auth"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/domain/subscription"
	"github.com/worksphere/billing/internal/integration"
	"github.com/worksphere/billing/internal/lock"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

const (
	TestTenantID     = "tenant_test"
	TestSigningToken = "test-token-signing-secret"
)

// Stores holds the in-memory repositories of a test
type Stores struct {
	BillingCycleRepo *InMemoryBillingCycleStore
	InvoiceRepo      *InMemoryInvoiceStore
	PaymentRepo      *InMemoryPaymentStore
	TokenRepo        *InMemoryPaymentTokenStore
	SubRepo          *InMemorySubscriptionStore
	AuditLogRepo     *InMemoryAuditLogStore
	NotificationRepo *InMemoryNotificationStore
}

// BaseServiceTestSuite wires in-memory stores and fakes for service tests.
// Every test starts from fresh state.
type BaseServiceTestSuite struct {
	suite.Suite

	ctx       context.Context
	cfg       *config.Configuration
	log       *logger.Logger
	stores    Stores
	cache     cache.Cache
	locker    lock.Locker
	publisher *RecordingPublisher
	gateway   *FakeGateway
	gateways  *integration.GatewayRegistry
	orch      *FakeOrchestrator
	taxes     *StaticTaxSource
	signer    *StaticSigner
	usage     *StaticUsageSource
	mailer    *RecordingMailer
	tokens    *auth.TokenSigner
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.SetRequestID(context.Background(), "req_test")
	s.ctx = types.SetUserID(s.ctx, "scheduler")

	s.cfg = NewTestConfig()
	s.cfg.Payment.TokenSigningSecret = TestSigningToken
	s.cfg.Payment.DefaultProvider = types.PaymentProviderStripe
	s.cfg.Billing.InvoiceNetDays = 0
	s.cfg.Billing.PlanAmounts = map[string]string{
		"growth":  "1200.00",
		"premium": "1000.00",
	}
	// backoff waits are irrelevant to the assertions
	s.cfg.Billing.UsageFetch.InitialInterval = time.Millisecond
	s.cfg.Billing.UsageFetch.MaxInterval = time.Millisecond
	s.cfg.Billing.Notification.InitialInterval = time.Millisecond
	s.cfg.Billing.Notification.MaxInterval = time.Millisecond

	s.log = NewTestLogger()
	s.stores = Stores{
		BillingCycleRepo: NewInMemoryBillingCycleStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		TokenRepo:        NewInMemoryPaymentTokenStore(),
		SubRepo:          NewInMemorySubscriptionStore(),
		AuditLogRepo:     NewInMemoryAuditLogStore(),
		NotificationRepo: NewInMemoryNotificationStore(),
	}
	s.cache = cache.NewInMemoryCache(config.CacheConfig{Enabled: true})
	s.locker = lock.NewMemoryLocker()
	s.publisher = NewRecordingPublisher()
	s.gateway = NewFakeGateway(types.PaymentProviderStripe)
	s.gateways = integration.NewGatewayRegistry()
	s.gateways.Register(types.PaymentProviderStripe, s.gateway)
	s.orch = NewFakeOrchestrator()
	s.taxes = NewStaticTaxSource(map[string]string{"CO-PREMIUM": "0.19"})
	s.signer = &StaticSigner{}
	s.usage = &StaticUsageSource{}
	s.mailer = &RecordingMailer{}
	s.tokens = auth.NewTokenSigner(TestSigningToken)
}

func (s *BaseServiceTestSuite) TearDownTest() {
	s.cache.Flush(context.Background())
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration { return s.cfg }
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger { return s.log }
func (s *BaseServiceTestSuite) GetStores() Stores { return s.stores }
func (s *BaseServiceTestSuite) GetCache() cache.Cache { return s.cache }
func (s *BaseServiceTestSuite) GetLocker() lock.Locker { return s.locker }
func (s *BaseServiceTestSuite) GetPublisher() *RecordingPublisher { return s.publisher }
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway { return s.gateway }
func (s *BaseServiceTestSuite) GetGateways() *integration.GatewayRegistry { return s.gateways }
func (s *BaseServiceTestSuite) GetOrchestrator() *FakeOrchestrator { return s.orch }
func (s *BaseServiceTestSuite) GetTaxSource() *StaticTaxSource { return s.taxes }
func (s *BaseServiceTestSuite) GetSigner() *StaticSigner { return s.signer }
func (s *BaseServiceTestSuite) GetUsageSource() *StaticUsageSource { return s.usage }
func (s *BaseServiceTestSuite) GetMailer() *RecordingMailer { return s.mailer }
func (s *BaseServiceTestSuite) GetTokenSigner() *auth.TokenSigner { return s.tokens }

// CreateSubscription stores an active growth subscription for the tenant
// covering the given period.
func (s *BaseServiceTestSuite) CreateSubscription(tenantID string, start, end time.Time) *subscription.Subscription {
	base := types.GetDefaultBaseModel(s.ctx)
	base.TenantID = tenantID
	base.CreatedAt = start.AddDate(-1, 0, 0)
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		PlanCode:           "growth",
		PlanType:           "STANDARD",
		Tier:               "growth",
		Country:            "US",
		Currency:           "USD",
		Email:              "billing@" + tenantID + ".test",
		Provider:           types.PaymentProviderStripe,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		BaseModel:          base,
	}
	s.Require().NoError(s.stores.SubRepo.Create(s.ctx, sub))
	return sub
}

// CreateToken stores a signed token for the tenant valid for a year
func (s *BaseServiceTestSuite) CreateToken(tenantID string, reusable bool) *payment.Token {
	base := types.GetDefaultBaseModel(s.ctx)
	base.TenantID = tenantID
	payload := "cus_" + tenantID + ":pm_card_visa"
	expires := time.Now().UTC().AddDate(1, 0, 0)
	sig, err := s.tokens.Sign(tenantID, payload, expires)
	s.Require().NoError(err)

	tok := &payment.Token{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_TOKEN),
		Provider:         types.PaymentProviderStripe,
		EncryptedPayload: payload,
		Signature:        sig,
		ExpiresAt:        expires,
		Reusable:         reusable,
		BaseModel:        base,
	}
	s.Require().NoError(s.stores.TokenRepo.Create(s.ctx, tok))
	return tok
}

// Date builds a UTC midnight date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Money parses a decimal literal
func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
