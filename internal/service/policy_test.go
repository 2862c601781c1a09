package service

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type PolicyProviderSuite struct {
	testutil.BaseServiceTestSuite
}

func TestPolicyProvider(t *testing.T) {
	suite.Run(t, new(PolicyProviderSuite))
}

func (s *PolicyProviderSuite) TestGetPolicy_Default() {
	provider := NewConfigPolicyProvider(s.GetConfig(), s.GetCache(), s.GetLogger())

	pol, err := provider.GetPolicy(s.GetContext(), "tenant_plain")
	s.Require().NoError(err)
	s.Equal("tenant_plain", pol.TenantID)
	s.Equal(types.RenewalModeAutomatic, pol.RenewalMode)
	s.Equal(15, pol.GraceDays)
	s.Equal(3, pol.WarningDays)
	s.True(pol.AutoReactivate)
	s.Equal([]types.RenewalMode{types.RenewalModeManual}, pol.RequirePaymentModes)
	s.Nil(pol.UsageLimit)
}

func (s *PolicyProviderSuite) TestGetPolicy_TenantOverlay() {
	s.GetConfig().Billing.TenantPolicies = []config.PolicyConfig{{
		TenantID:               "tenant_vip",
		RenewalMode:            types.RenewalModeMixed,
		GraceDays:              30,
		CancelInsteadOfSuspend: true,
		UsageLimit:             "5000.5",
		EligiblePlans:          []string{"enterprise"},
	}}
	provider := NewConfigPolicyProvider(s.GetConfig(), s.GetCache(), s.GetLogger())

	pol, err := provider.GetPolicy(s.GetContext(), "tenant_vip")
	s.Require().NoError(err)
	s.Equal(types.RenewalModeMixed, pol.RenewalMode)
	s.Equal(30, pol.GraceDays)
	// unset numbers and lists fall back to the default
	s.Equal(3, pol.WarningDays)
	s.Equal([]types.RenewalMode{types.RenewalModeManual}, pol.RequirePaymentModes)
	// flags always come from the tenant entry
	s.True(pol.CancelInsteadOfSuspend)
	s.False(pol.AutoReactivate)
	s.False(pol.AllowManualRenewal)
	s.Require().NotNil(pol.UsageLimit)
	s.True(pol.UsageLimit.Equal(testutil.Money("5000.5")))
	s.True(pol.IsPlanEligible("Enterprise"))
	s.False(pol.IsPlanEligible("growth"))

	other, err := provider.GetPolicy(s.GetContext(), "tenant_plain")
	s.Require().NoError(err)
	s.Equal(types.RenewalModeAutomatic, other.RenewalMode)
}

func (s *PolicyProviderSuite) TestGetPolicy_WarningLongerThanGraceFallsBack() {
	s.GetConfig().Billing.TenantPolicies = []config.PolicyConfig{{
		TenantID:    "tenant_odd",
		GraceDays:   2,
		WarningDays: 10,
	}}
	provider := NewConfigPolicyProvider(s.GetConfig(), s.GetCache(), s.GetLogger())

	pol, err := provider.GetPolicy(s.GetContext(), "tenant_odd")
	s.Require().NoError(err)
	s.Equal(2, pol.GraceDays)
	s.Equal(3, pol.WarningDays)
}

func (s *PolicyProviderSuite) TestGetPolicy_InvalidUsageLimit() {
	s.GetConfig().Billing.TenantPolicies = []config.PolicyConfig{{TenantID: "tenant_bad", UsageLimit: "lots"}}
	provider := NewConfigPolicyProvider(s.GetConfig(), s.GetCache(), s.GetLogger())

	_, err := provider.GetPolicy(s.GetContext(), "tenant_bad")
	s.True(ierr.IsValidation(err))
}

func (s *PolicyProviderSuite) TestGetPolicy_ServedFromCache() {
	provider := NewConfigPolicyProvider(s.GetConfig(), s.GetCache(), s.GetLogger())
	first, err := provider.GetPolicy(s.GetContext(), "tenant_cached")
	s.Require().NoError(err)

	// a provider over a different config still sees the cached entry
	cfg := testutil.NewTestConfig()
	cfg.Billing.DefaultPolicy.GraceDays = 60
	again, err := NewConfigPolicyProvider(cfg, s.GetCache(), s.GetLogger()).GetPolicy(s.GetContext(), "tenant_cached")
	s.Require().NoError(err)
	s.Equal(first.GraceDays, again.GraceDays)
}
