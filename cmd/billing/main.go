package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/worksphere/billing/internal/auth"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/notification"
	"github.com/worksphere/billing/internal/domain/policy"
	"github.com/worksphere/billing/internal/domain/taxrule"
	"github.com/worksphere/billing/internal/domain/tenant"
	"github.com/worksphere/billing/internal/domain/usage"
	"github.com/worksphere/billing/internal/email"
	"github.com/worksphere/billing/internal/httpclient"
	"github.com/worksphere/billing/internal/integration"
	"github.com/worksphere/billing/internal/integration/metrics"
	"github.com/worksphere/billing/internal/integration/orchestrator"
	"github.com/worksphere/billing/internal/lock"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/postgres"
	"github.com/worksphere/billing/internal/publisher"
	"github.com/worksphere/billing/internal/pubsub"
	redisClient "github.com/worksphere/billing/internal/redis"
	"github.com/worksphere/billing/internal/sentry"
	"github.com/worksphere/billing/internal/service"
	"github.com/worksphere/billing/internal/taxrules"
	temporalService "github.com/worksphere/billing/internal/temporal/service"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			sentry.NewSentryService,

			provideRedis,
			providePostgres,
			lock.New,
			cache.Initialize,
			pubsub.New,
			publisher.NewEventPublisher,

			postgres.NewBillingCycleRepository,
			postgres.NewInvoiceRepository,
			postgres.NewPaymentRepository,
			postgres.NewTokenRepository,
			postgres.NewSubscriptionRepository,
			postgres.NewAuditLogRepository,
			postgres.NewNotificationRepository,

			integration.NewGatewayRegistryFromConfig,
			provideHTTPClient,
			provideTaxSource,
			provideSigners,
			provideOrchestrator,
			provideUsageSource,
			provideMailer,
			providePolicyProvider,
			provideTracker,

			provideSaga,
			provideScheduler,
		),
		fx.Invoke(registerSchedules),
	)
	app.Run()
}

// provideRedis returns nil when neither the cache nor the locker uses redis
func provideRedis(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*redisClient.Client, error) {
	if cfg.Cache.Type != "redis" && cfg.Locker.Type != string(lock.TypeRedis) {
		return nil, nil
	}
	client, err := redisClient.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func providePostgres(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.Client, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}
	client := postgres.NewClient(db, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Migrate(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return client, nil
}

type httpClients struct {
	fx.Out

	Metrics      httpclient.Client `name:"metrics"`
	Orchestrator httpclient.Client `name:"orchestrator"`
}

func provideHTTPClient(cfg *config.Configuration, log *logger.Logger) httpClients {
	return httpClients{
		Metrics: httpclient.NewClient(httpclient.Options{
			Timeout:  cfg.Billing.Timeouts.MetricsAgent,
			RetryMax: cfg.MetricsAgent.RetryMax,
		}, log),
		Orchestrator: httpclient.NewClient(httpclient.Options{
			Timeout:  cfg.Billing.Timeouts.Orchestrator,
			RetryMax: cfg.Orchestrator.RetryMax,
		}, log),
	}
}

func provideTaxSource(cfg *config.Configuration, log *logger.Logger) (taxrule.Source, error) {
	return taxrules.NewFileSource(cfg.Tax, log)
}

type signers struct {
	fx.Out

	Invoice invoice.Signer
	Token   *auth.TokenSigner
}

func provideSigners(cfg *config.Configuration) signers {
	secret := cfg.Payment.TokenSigningSecret
	return signers{
		Invoice: auth.NewInvoiceSigner(secret),
		Token:   auth.NewTokenSigner(secret),
	}
}

type orchestratorParams struct {
	fx.In

	Config *config.Configuration
	Logger *logger.Logger
	Client httpclient.Client `name:"orchestrator"`
}

func provideOrchestrator(p orchestratorParams) tenant.Orchestrator {
	return orchestrator.NewClient(p.Config.Orchestrator, p.Client, p.Logger)
}

type usageParams struct {
	fx.In

	Config *config.Configuration
	Logger *logger.Logger
	Client httpclient.Client `name:"metrics"`
}

func provideUsageSource(p usageParams) usage.Source {
	if !p.Config.MetricsAgent.Enabled {
		p.Logger.Warnw("metrics agent disabled, usage will be reported as empty")
		return noUsage{}
	}
	return metrics.NewClient(p.Config.MetricsAgent, p.Client)
}

// noUsage reports no metrics for every window
type noUsage struct{}

func (noUsage) GetMetrics(context.Context, string, time.Time, time.Time) ([]usage.RawMetric, error) {
	return nil, nil
}

func provideMailer(cfg *config.Configuration, log *logger.Logger) notification.InvoiceMailer {
	return email.NewInvoiceMailer(email.NewClient(cfg.Email), log)
}

func providePolicyProvider(cfg *config.Configuration, c cache.Cache, log *logger.Logger) policy.Provider {
	return service.NewConfigPolicyProvider(cfg, c, log)
}

func provideTracker(rdb *redisClient.Client) service.ProcessedTracker {
	if rdb == nil {
		return service.NewMemoryProcessedTracker()
	}
	return service.NewRedisProcessedTracker(rdb)
}

// provideSaga runs cycles through temporal when it is enabled and in
// process otherwise.
func provideSaga(lc fx.Lifecycle, params service.ServiceParams) (service.BillingCycleService, error) {
	if !params.Config.Temporal.Enabled {
		saga := service.NewBillingCycleService(params)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				saga.Wait()
				return nil
			},
		})
		return saga, nil
	}

	ts, err := temporalService.NewTemporalService(params)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: ts.Start,
		OnStop:  ts.Stop,
	})
	return ts, nil
}

func provideScheduler(params service.ServiceParams, saga service.BillingCycleService, tracker service.ProcessedTracker) service.SchedulerService {
	return service.NewSchedulerService(params, saga, tracker)
}

type sweepFunc func(ctx context.Context, now time.Time) (*service.SweepResult, error)

func registerSchedules(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger, s service.SchedulerService, sentrySvc *sentry.Service) error {
	if !cfg.Scheduler.Enabled {
		log.Infow("scheduler disabled")
		return nil
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	jobs := []struct {
		name string
		spec string
		run  sweepFunc
	}{
		{"billing", cfg.Scheduler.Billing, s.RunBillingSweep},
		{"renewal", cfg.Scheduler.Renewal, s.RunRenewalSweep},
		{"cancellation", cfg.Scheduler.Cancellation, s.RunCancellationSweep},
		{"retry", cfg.Scheduler.Retry, s.RunRetrySweep},
	}
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			runSweep(log, sentrySvc, job.name, job.run)
		}); err != nil {
			return err
		}
		log.Infow("registered sweep", "sweep", job.name, "schedule", job.spec)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// wait for running sweeps, bounded by the stop timeout
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			sentrySvc.Flush(2 * time.Second)
			return nil
		},
	})
	return nil
}

func runSweep(log *logger.Logger, sentrySvc *sentry.Service, name string, run sweepFunc) {
	ctx := context.Background()
	start := time.Now()

	res, err := run(ctx, start.UTC())
	if err != nil {
		log.Errorw("sweep failed", "sweep", name, "error", err)
		sentrySvc.CaptureException(ctx, err, map[string]string{"sweep": name})
		return
	}
	log.Infow("sweep finished",
		"sweep", name,
		"run_id", res.RunID,
		"shards", len(res.Shards),
		"failed", res.Failed(),
		"duration", time.Since(start))
}
