package testutil

import "github.com/worksphere/billing/internal/config"

// NewTestConfig returns the embedded defaults with external backends off
func NewTestConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Email.Enabled = false
	cfg.Sentry.Enabled = false
	cfg.Temporal.Enabled = false
	cfg.EventPublisher.PubSub = "memory"
	return cfg
}
