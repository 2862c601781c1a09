package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/domain/taxrule"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// TaxResult is the tax owed on an amount and the rules that produced it
type TaxResult struct {
	Rate   decimal.Decimal    `json:"rate"`
	Amount decimal.Decimal    `json:"amount"`
	Rules  []*taxrule.TaxRule `json:"rules"`
}

// TaxService evaluates tax rules
type TaxService interface {
	// ApplyTax sums every rule matching "<country>-<planType>" and the country
	// wildcard. No match yields a zero rate, not an error.
	ApplyTax(ctx context.Context, country, planType string, amount decimal.Decimal) (*TaxResult, error)
}

type taxService struct {
	ServiceParams
}

func NewTaxService(params ServiceParams) TaxService {
	return &taxService{ServiceParams: params}
}

func (s *taxService) ApplyTax(ctx context.Context, country, planType string, amount decimal.Decimal) (*TaxResult, error) {
	if amount.IsNegative() {
		return nil, ierr.NewError("taxable amount cannot be negative").
			WithHint("Taxable amount must be zero or positive").
			WithReportableDetails(map[string]interface{}{"amount": amount.String()}).
			Mark(ierr.ErrValidation)
	}

	rules, err := s.TaxSource.Match(ctx, country, planType)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Tax rules are unavailable").
			WithReportableDetails(map[string]interface{}{
				"country":   country,
				"plan_type": planType,
			}).
			Mark(ierr.ErrInternal)
	}

	log := s.Logger.WithContext(ctx)
	rate := decimal.Zero
	for _, rule := range rules {
		log.Infow("applying tax rule",
			"rule", rule.Key,
			"rate", rule.Rate.String(),
			"amount", amount.String(),
		)
		rate = rate.Add(rule.Rate)
	}
	if len(rules) == 0 {
		log.Debugw("no tax rule matched, applying zero rate", "key", taxrule.Key(country, planType))
	}

	return &TaxResult{
		Rate:   rate,
		Amount: types.RoundMoney(amount.Mul(rate)),
		Rules:  rules,
	}, nil
}
