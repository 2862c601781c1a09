package policy

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/types"
)

const (
	DefaultGraceDays           = 15
	DefaultWarningDays         = 3
	DefaultRenewalPeriodMonths = 1
)

// Policy is the per-tenant rule set consulted by renewal and non-payment
// enforcement.
type Policy struct {
	TenantID               string              `json:"tenant_id"`
	RenewalMode            types.RenewalMode   `json:"renewal_mode"`
	GraceDays              int                 `json:"grace_days"`
	WarningDays            int                 `json:"warning_days"`
	CancelInsteadOfSuspend bool                `json:"cancel_instead_of_suspend"`
	AutoReactivate         bool                `json:"auto_reactivate"`
	AllowManualRenewal     bool                `json:"allow_manual_renewal"`
	PreApproved            bool                `json:"pre_approved"`
	RequirePaymentModes    []types.RenewalMode `json:"require_payment_modes"`
	EligiblePlans          []string            `json:"eligible_plans"`
	// UsageLimit is nil when usage is unlimited
	UsageLimit          *decimal.Decimal   `json:"usage_limit,omitempty"`
	FailOnReasons       []types.ReasonCode `json:"fail_on_reasons"`
	RenewalPeriodMonths int                `json:"renewal_period_months"`
}

// IsContractValid reports the contract has not ended before now
func (p *Policy) IsContractValid(contractEnd *time.Time, now time.Time) bool {
	if contractEnd == nil {
		return true
	}
	return !types.StartOfDay(now).After(types.StartOfDay(*contractEnd))
}

// IsPlanEligible reports the plan may renew. An empty list allows every plan.
func (p *Policy) IsPlanEligible(planCode string) bool {
	if len(p.EligiblePlans) == 0 {
		return true
	}
	code := strings.ToLower(strings.TrimSpace(planCode))
	return lo.ContainsBy(p.EligiblePlans, func(plan string) bool {
		return strings.ToLower(plan) == code
	})
}

func (p *Policy) IsWithinUsageLimit(units decimal.Decimal) bool {
	if p.UsageLimit == nil {
		return true
	}
	return units.LessThanOrEqual(*p.UsageLimit)
}

func (p *Policy) RequiresSuccessfulPaymentBeforeRenewal(mode types.RenewalMode) bool {
	return lo.Contains(p.RequirePaymentModes, mode)
}

func (p *Policy) AllowsManualRenewal() bool {
	return p.AllowManualRenewal
}

func (p *Policy) HasPreApproval() bool {
	return p.PreApproved
}

// MustFailOnReason reports whether a non-renewal for reason is terminal
// rather than pending.
func (p *Policy) MustFailOnReason(reason types.ReasonCode) bool {
	return lo.Contains(p.FailOnReasons, reason)
}

// NextPeriod returns the period following a cycle that ended on cycleEnd:
// it starts the next day and spans RenewalPeriodMonths.
func (p *Policy) NextPeriod(cycleEnd time.Time) (time.Time, time.Time) {
	months := p.RenewalPeriodMonths
	if months <= 0 {
		months = DefaultRenewalPeriodMonths
	}
	start := types.StartOfDay(cycleEnd).AddDate(0, 0, 1)
	end := start.AddDate(0, months, -1)
	return start, end
}

// CancelThreshold is the first instant enforcement may suspend or cancel
func (p *Policy) CancelThreshold(dueDate time.Time) time.Time {
	return types.StartOfDay(dueDate).AddDate(0, 0, p.GraceDays)
}

// WarningStart is the first instant the cancellation warning may fire
func (p *Policy) WarningStart(dueDate time.Time) time.Time {
	return p.CancelThreshold(dueDate).AddDate(0, 0, -p.WarningDays)
}
