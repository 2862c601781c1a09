package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MONEY_SCALE is the number of decimal places every stored amount keeps
	MONEY_SCALE = 2

	DEFAULT_PRECISION = 2
	DEFAULT_CURRENCY  = "usd"
)

var currencyPrecision = map[string]int32{
	"usd": 2, "eur": 2, "gbp": 2, "aud": 2, "cad": 2,
	"jpy": 0, "krw": 0, "vnd": 0, "clp": 0,
	"inr": 2, "sgd": 2, "sar": 2, "cop": 2, "mxn": 2, "brl": 2,
	"kwd": 3, "bhd": 3,
}

// GetCurrencyPrecision returns the minor-unit digits for an ISO currency code
func GetCurrencyPrecision(currency string) int32 {
	if p, ok := currencyPrecision[strings.ToLower(currency)]; ok {
		return p
	}
	return DEFAULT_PRECISION
}

// RoundHalfUp rounds toward positive infinity on an exact half
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Add(decimal.New(5, -(places + 1))).RoundFloor(places)
}

// RoundMoney rounds an amount to MONEY_SCALE with half-up semantics
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, MONEY_SCALE)
}

// RoundToCurrencyPrecision rounds half-up to the currency's minor unit
func RoundToCurrencyPrecision(d decimal.Decimal, currency string) decimal.Decimal {
	return RoundHalfUp(d, GetCurrencyPrecision(currency))
}

// ToSmallestUnit converts a major-unit amount into integer minor units
func ToSmallestUnit(d decimal.Decimal, currency string) int64 {
	p := GetCurrencyPrecision(currency)
	return RoundHalfUp(d, p).Shift(p).IntPart()
}

// FromSmallestUnit converts integer minor units back to a major-unit amount
func FromSmallestUnit(v int64, currency string) decimal.Decimal {
	return decimal.New(v, -GetCurrencyPrecision(currency))
}

// StartOfDay truncates t to midnight UTC of its calendar date
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// InclusiveDays counts calendar days in [start, end] counting both ends.
// The result is zero or negative when end precedes start.
func InclusiveDays(start, end time.Time) int64 {
	s := StartOfDay(start)
	e := StartOfDay(end)
	return int64(e.Sub(s).Hours()/24) + 1
}

// AddDays adds whole calendar days
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
