package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/domain/proration"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// BillingRequest is the input of one calculation. It lives only for the
// duration of a pipeline run.
type BillingRequest struct {
	TenantID   string
	PlanCode   string
	PlanType   string
	Country    string
	Currency   string
	CycleStart time.Time
	CycleEnd   time.Time
	// UsageStart and UsageEnd default to the cycle bounds
	UsageStart *time.Time
	UsageEnd   *time.Time
	// UsageUnits is filled from the metrics agent when nil
	UsageUnits *decimal.Decimal
}

func (r *BillingRequest) Validate() error {
	if r.TenantID == "" || r.PlanCode == "" {
		return ierr.NewError("tenant and plan are required").
			WithHint("Billing request is missing tenant or plan").
			Mark(ierr.ErrValidation)
	}
	if r.CycleStart.IsZero() || r.CycleEnd.IsZero() {
		return ierr.NewError("cycle bounds are required").
			WithHint("Billing request is missing cycle bounds").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Calculation is the priced result of a BillingRequest. Exactly one of Base
// and Prorated is non-zero for a non-zero plan.
type Calculation struct {
	PlanAmount decimal.Decimal
	Base       decimal.Decimal
	Prorated   decimal.Decimal
	Tax        *TaxResult
	Total      decimal.Decimal
	Currency   string
	UsedDays   int64
	TotalDays  int64
	UsageUnits decimal.Decimal
}

// BillingCalculationService prices a cycle: prorate, then tax, once each
type BillingCalculationService interface {
	Calculate(ctx context.Context, req *BillingRequest) (*Calculation, error)
}

type billingCalculationService struct {
	ServiceParams
}

func NewBillingCalculationService(params ServiceParams) BillingCalculationService {
	return &billingCalculationService{ServiceParams: params}
}

func (s *billingCalculationService) Calculate(ctx context.Context, req *BillingRequest) (*Calculation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	planAmount, ok := s.Config.Billing.GetPlanAmount(req.PlanCode)
	if !ok {
		return nil, ierr.NewErrorf("no price configured for plan %s", req.PlanCode).
			WithHint("Plan has no configured amount").
			WithReportableDetails(map[string]interface{}{"plan_code": req.PlanCode}).
			Mark(ierr.ErrValidation)
	}

	prorated, err := proration.Prorate(planAmount, proration.Window{
		CycleStart: req.CycleStart,
		CycleEnd:   req.CycleEnd,
		UsageStart: req.UsageStart,
		UsageEnd:   req.UsageEnd,
	})
	if err != nil {
		return nil, err
	}

	calc := &Calculation{
		PlanAmount: planAmount,
		Base:       decimal.Zero,
		Prorated:   decimal.Zero,
		Currency:   strings.ToUpper(req.Currency),
		UsedDays:   prorated.UsedDays,
		TotalDays:  prorated.TotalDays,
		UsageUnits: decimal.Zero,
	}
	if req.UsageUnits != nil {
		calc.UsageUnits = *req.UsageUnits
	}
	if prorated.IsFullCycle() {
		calc.Base = types.RoundMoney(planAmount)
	} else {
		calc.Prorated = prorated.Amount
	}

	calc.Tax, err = NewTaxService(s.ServiceParams).ApplyTax(ctx, req.Country, req.PlanType, calc.Base.Add(calc.Prorated))
	if err != nil {
		return nil, err
	}
	calc.Total = calc.Base.Add(calc.Prorated).Add(calc.Tax.Amount)

	s.Logger.WithContext(ctx).Infow("calculated billing amounts",
		"tenant_id", req.TenantID,
		"plan_code", req.PlanCode,
		"base", calc.Base.String(),
		"prorated", calc.Prorated.String(),
		"tax", calc.Tax.Amount.String(),
		"total", calc.Total.String(),
		"used_days", calc.UsedDays,
		"total_days", calc.TotalDays,
	)
	return calc, nil
}
