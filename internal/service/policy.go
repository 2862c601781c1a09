package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/policy"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
)

// ConfigPolicyProvider resolves tenant policies from the billing config.
// A tenant entry replaces the default's flags; its zero numeric and empty
// list fields fall back to the default.
type ConfigPolicyProvider struct {
	cfg   config.BillingConfig
	cache cache.Cache
	log   *logger.Logger
}

func NewConfigPolicyProvider(cfg *config.Configuration, c cache.Cache, log *logger.Logger) policy.Provider {
	return &ConfigPolicyProvider{cfg: cfg.Billing, cache: c, log: log}
}

func (p *ConfigPolicyProvider) GetPolicy(ctx context.Context, tenantID string) (*policy.Policy, error) {
	key := cache.PrefixPolicy + tenantID
	if raw, ok := p.cache.Get(ctx, key); ok {
		if cached, ok := cache.UnmarshalCacheValue[policy.Policy](raw); ok {
			return cached, nil
		}
	}

	merged := p.cfg.DefaultPolicy
	for _, tp := range p.cfg.TenantPolicies {
		if tp.TenantID != tenantID {
			continue
		}
		merged = overlayPolicy(merged, tp)
		break
	}

	pol, err := toPolicy(tenantID, merged)
	if err != nil {
		return nil, err
	}
	p.cache.Set(ctx, key, pol, cache.ExpiryPolicy)
	return pol, nil
}

func overlayPolicy(base, tenant config.PolicyConfig) config.PolicyConfig {
	out := base
	if tenant.RenewalMode != "" {
		out.RenewalMode = tenant.RenewalMode
	}
	if tenant.GraceDays > 0 {
		out.GraceDays = tenant.GraceDays
	}
	if tenant.WarningDays > 0 {
		out.WarningDays = tenant.WarningDays
	}
	if tenant.RenewalPeriodMonths > 0 {
		out.RenewalPeriodMonths = tenant.RenewalPeriodMonths
	}
	if tenant.UsageLimit != "" {
		out.UsageLimit = tenant.UsageLimit
	}
	if len(tenant.RequirePayment) > 0 {
		out.RequirePayment = tenant.RequirePayment
	}
	if len(tenant.EligiblePlans) > 0 {
		out.EligiblePlans = tenant.EligiblePlans
	}
	if len(tenant.FailOnReasons) > 0 {
		out.FailOnReasons = tenant.FailOnReasons
	}
	out.CancelInsteadOfSuspend = tenant.CancelInsteadOfSuspend
	out.AutoReactivate = tenant.AutoReactivate
	out.AllowManualRenewal = tenant.AllowManualRenewal
	out.PreApproved = tenant.PreApproved
	return out
}

func toPolicy(tenantID string, pc config.PolicyConfig) (*policy.Policy, error) {
	pol := &policy.Policy{
		TenantID:               tenantID,
		RenewalMode:            pc.RenewalMode,
		GraceDays:              pc.GraceDays,
		WarningDays:            pc.WarningDays,
		CancelInsteadOfSuspend: pc.CancelInsteadOfSuspend,
		AutoReactivate:         pc.AutoReactivate,
		AllowManualRenewal:     pc.AllowManualRenewal,
		PreApproved:            pc.PreApproved,
		RequirePaymentModes:    pc.RequirePayment,
		EligiblePlans:          pc.EligiblePlans,
		FailOnReasons:          pc.FailOnReasons,
		RenewalPeriodMonths:    pc.RenewalPeriodMonths,
	}
	if pol.GraceDays <= 0 {
		pol.GraceDays = policy.DefaultGraceDays
	}
	if pol.WarningDays < 0 || pol.WarningDays > pol.GraceDays {
		pol.WarningDays = policy.DefaultWarningDays
	}
	if pol.RenewalPeriodMonths <= 0 {
		pol.RenewalPeriodMonths = policy.DefaultRenewalPeriodMonths
	}

	if limit := strings.TrimSpace(pc.UsageLimit); limit != "" {
		d, err := decimal.NewFromString(limit)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Invalid usage limit %q for tenant policy", limit).
				WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
				Mark(ierr.ErrValidation)
		}
		pol.UsageLimit = &d
	}
	return pol, nil
}
