package taxrule

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Wildcard matches every plan type of a country
const Wildcard = "*"

// TaxRule is a rate keyed by "<country>-<planType>"
type TaxRule struct {
	Key      string          `json:"key"`
	Country  string          `json:"country"`
	PlanType string          `json:"plan_type"`
	Rate     decimal.Decimal `json:"rate"`
}

// Key normalizes a jurisdiction key
func Key(country, planType string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(strings.TrimSpace(country)), strings.ToUpper(strings.TrimSpace(planType)))
}

// Parse builds a rule from a "<country>-<planType>" key
func Parse(key string, rate decimal.Decimal) (*TaxRule, error) {
	country, planType, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok || country == "" || planType == "" {
		return nil, fmt.Errorf("malformed tax rule key %q", key)
	}
	return &TaxRule{
		Key:      Key(country, planType),
		Country:  strings.ToUpper(country),
		PlanType: strings.ToUpper(planType),
		Rate:     rate,
	}, nil
}
