package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfUp(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{name: "exact_half_rounds_up", amount: "10.275", expected: "10.28"},
		{name: "below_half_rounds_down", amount: "10.2749", expected: "10.27"},
		{name: "proration_1200_15_31", amount: "580.6451612903", expected: "580.65"},
		{name: "already_scaled", amount: "1190.00", expected: "1190.00"},
		{name: "negative_half_rounds_toward_positive", amount: "-0.125", expected: "-0.12"},
		{name: "zero", amount: "0", expected: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundMoney(decimal.RequireFromString(tt.amount))
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, got.Equal(expected), "expected %s, got %s", expected, got)
		})
	}
}

func TestRoundToCurrencyPrecision(t *testing.T) {
	tests := []struct {
		amount    string
		currency  string
		expected  string
		precision int32
	}{
		{amount: "10.275", currency: "usd", expected: "10.28", precision: 2},
		{amount: "1000.5", currency: "jpy", expected: "1001", precision: 0},
		{amount: "1.2345", currency: "KWD", expected: "1.235", precision: 3},
		{amount: "10.275", currency: "xxx", expected: "10.28", precision: DEFAULT_PRECISION},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			got := RoundToCurrencyPrecision(decimal.RequireFromString(tt.amount), tt.currency)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s", got)
			assert.Equal(t, tt.precision, GetCurrencyPrecision(tt.currency))
		})
	}
}

func TestSmallestUnitConversion(t *testing.T) {
	assert.Equal(t, int64(119000), ToSmallestUnit(decimal.RequireFromString("1190.00"), "usd"))
	assert.Equal(t, int64(1001), ToSmallestUnit(decimal.RequireFromString("1000.5"), "jpy"))
	assert.True(t, FromSmallestUnit(58065, "usd").Equal(decimal.RequireFromString("580.65")))
}

func TestInclusiveDays(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, int64(31), InclusiveDays(day(1), day(31)))
	assert.Equal(t, int64(15), InclusiveDays(day(1), day(15)))
	assert.Equal(t, int64(1), InclusiveDays(day(5), day(5)))
	assert.Equal(t, int64(0), InclusiveDays(day(5), day(4)))

	// time of day is ignored
	assert.Equal(t, int64(2), InclusiveDays(day(1).Add(23*time.Hour), day(2).Add(time.Minute)))
}
