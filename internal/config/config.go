package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

//go:embed config.yaml
var defaultConfigYAML []byte

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type Configuration struct {
	Deployment     DeploymentConfig     `mapstructure:"deployment" validate:"required"`
	Logging        LoggingConfig        `mapstructure:"logging" validate:"required"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Locker         LockerConfig         `mapstructure:"locker"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	EventPublisher EventPublisherConfig `mapstructure:"event_publisher" validate:"required"`
	Billing        BillingConfig        `mapstructure:"billing" validate:"required"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler" validate:"required"`
	Payment        PaymentConfig        `mapstructure:"payment" validate:"required"`
	Tax            TaxConfig            `mapstructure:"tax"`
	MetricsAgent   HTTPClientConfig     `mapstructure:"metrics_agent"`
	Orchestrator   HTTPClientConfig     `mapstructure:"orchestrator"`
	Email          EmailConfig          `mapstructure:"email"`
	Temporal       TemporalConfig       `mapstructure:"temporal"`
	Sentry         SentryConfig         `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode string `mapstructure:"mode" validate:"required"`
}

type LoggingConfig struct {
	Level          LogLevel `mapstructure:"level" validate:"required"`
	FluentdEnabled bool     `mapstructure:"fluentd_enabled"`
	FluentdHost    string   `mapstructure:"fluentd_host"`
	FluentdPort    int      `mapstructure:"fluentd_port"`
}

type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	UseTLS   bool          `mapstructure:"use_tls"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type" validate:"omitempty,oneof=inmemory redis"`
}

type LockerConfig struct {
	// Type is one of memory, redis or postgres
	Type string        `mapstructure:"type" validate:"omitempty,oneof=memory redis postgres"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers       []string             `mapstructure:"brokers"`
	ClientID      string               `mapstructure:"client_id"`
	ConsumerGroup string               `mapstructure:"consumer_group"`
	TLS           bool                 `mapstructure:"tls"`
	UseSASL       bool                 `mapstructure:"use_sasl"`
	SASLMechanism sarama.SASLMechanism `mapstructure:"sasl_mechanism"`
	SASLUser      string               `mapstructure:"sasl_user"`
	SASLPassword  string               `mapstructure:"sasl_password"`
}

type EventPublisherConfig struct {
	// PubSub is memory or kafka
	PubSub   string        `mapstructure:"pubsub" validate:"required,oneof=memory kafka"`
	Topic    string        `mapstructure:"topic" validate:"required"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type BillingConfig struct {
	MaxRetries       int               `mapstructure:"max_retries" validate:"min=0"`
	ShardCount       int               `mapstructure:"shard_count" validate:"min=1"`
	ShardConcurrency int               `mapstructure:"shard_concurrency" validate:"min=1"`
	TenantRateLimit  float64           `mapstructure:"tenant_rate_limit"`
	Currency         string            `mapstructure:"currency" validate:"required"`
	InvoiceNetDays   int               `mapstructure:"invoice_net_days" validate:"min=0"`
	RetryPageSize    int               `mapstructure:"retry_page_size" validate:"min=1"`
	Timeouts         TimeoutsConfig    `mapstructure:"timeouts"`
	DefaultPolicy    PolicyConfig      `mapstructure:"default_policy"`
	TenantPolicies   []PolicyConfig    `mapstructure:"tenant_policies"`
	Notification     RetryConfig       `mapstructure:"notification"`
	UsageFetch       RetryConfig       `mapstructure:"usage_fetch"`
	PlanAmounts      map[string]string `mapstructure:"plan_amounts"`
}

// GetPlanAmount returns the configured base price for a plan code
func (c BillingConfig) GetPlanAmount(planCode string) (decimal.Decimal, bool) {
	v, ok := c.PlanAmounts[strings.ToLower(planCode)]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

type TimeoutsConfig struct {
	Gateway      time.Duration `mapstructure:"gateway"`
	Orchestrator time.Duration `mapstructure:"orchestrator"`
	Notification time.Duration `mapstructure:"notification"`
	MetricsAgent time.Duration `mapstructure:"metrics_agent"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// PolicyConfig is a tenant renewal / non-payment policy. The default policy
// has an empty TenantID.
type PolicyConfig struct {
	TenantID               string              `mapstructure:"tenant_id"`
	RenewalMode            types.RenewalMode   `mapstructure:"renewal_mode"`
	GraceDays              int                 `mapstructure:"grace_days"`
	WarningDays            int                 `mapstructure:"warning_days"`
	CancelInsteadOfSuspend bool                `mapstructure:"cancel_instead_of_suspend"`
	AutoReactivate         bool                `mapstructure:"auto_reactivate"`
	AllowManualRenewal     bool                `mapstructure:"allow_manual_renewal"`
	PreApproved            bool                `mapstructure:"pre_approved"`
	RequirePayment         []types.RenewalMode `mapstructure:"require_payment"`
	EligiblePlans          []string            `mapstructure:"eligible_plans"`
	UsageLimit             string              `mapstructure:"usage_limit"`
	FailOnReasons          []types.ReasonCode  `mapstructure:"fail_on_reasons"`
	RenewalPeriodMonths    int                 `mapstructure:"renewal_period_months"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Billing      string `mapstructure:"billing" validate:"required"`
	Renewal      string `mapstructure:"renewal" validate:"required"`
	Cancellation string `mapstructure:"cancellation" validate:"required"`
	Retry        string `mapstructure:"retry" validate:"required"`
}

type PaymentConfig struct {
	DefaultProvider    types.PaymentProvider `mapstructure:"default_provider" validate:"required"`
	TokenSigningSecret string                `mapstructure:"token_signing_secret"`
	Stripe             StripeConfig          `mapstructure:"stripe"`
	Razorpay           RazorpayConfig        `mapstructure:"razorpay"`
	Moyasar            MoyasarConfig         `mapstructure:"moyasar"`
}

type StripeConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SecretKey string `mapstructure:"secret_key"`
}

type RazorpayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
}

type MoyasarConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	SecretKey string `mapstructure:"secret_key"`
	RetryMax  int    `mapstructure:"retry_max"`
}

type TaxConfig struct {
	RulesFile string `mapstructure:"rules_file"`
	Watch     bool   `mapstructure:"watch"`
}

type HTTPClientConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	RetryMax int    `mapstructure:"retry_max"`
}

type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromAddress  string `mapstructure:"from_address"`
	ReplyTo      string `mapstructure:"reply_to"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// NewConfig loads the embedded defaults, an optional config.yaml, a .env file
// and BILLING_ prefixed environment variables, in increasing precedence.
func NewConfig() (*Configuration, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfigYAML)); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Embedded default configuration is invalid").
			Mark(ierr.ErrSystem)
	}

	v.SetConfigName("config")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrValidation)
		}
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode configuration").
			Mark(ierr.ErrValidation)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetDefaultConfig returns the embedded defaults. It never fails; a broken
// embedded file panics at startup.
func GetDefaultConfig() *Configuration {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfigYAML)); err != nil {
		panic(fmt.Sprintf("invalid embedded config: %v", err))
	}
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid embedded config: %v", err))
	}
	return &cfg
}

func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ierr.WithError(err).
			WithHint("Configuration is invalid").
			Mark(ierr.ErrValidation)
	}
	if err := c.Payment.DefaultProvider.Validate(); err != nil {
		return err
	}
	if err := c.Billing.DefaultPolicy.RenewalMode.Validate(); err != nil {
		return err
	}
	return nil
}
