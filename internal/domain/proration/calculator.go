// Package proration scales a plan charge to the part of a billing cycle
// actually used. Day counts include both boundary dates.
package proration

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// ErrInvalidCycleWindow is returned when a cycle has no days
var ErrInvalidCycleWindow = errors.New("invalid cycle window")

// Window is a cycle and the usage inside it
type Window struct {
	CycleStart time.Time
	CycleEnd   time.Time
	// UsageStart and UsageEnd default to the cycle bounds
	UsageStart *time.Time
	UsageEnd   *time.Time
}

// Result carries the inputs of the division for audit
type Result struct {
	Amount    decimal.Decimal
	UsedDays  int64
	TotalDays int64
}

// IsFullCycle reports the usage window covers every day of the cycle
func (r *Result) IsFullCycle() bool {
	return r.UsedDays == r.TotalDays
}

// Prorate returns base * usedDays / totalDays rounded half-up to cents.
// The usage window is clipped to the cycle; usage entirely outside the cycle
// prorates to zero.
func Prorate(base decimal.Decimal, w Window) (*Result, error) {
	totalDays := types.InclusiveDays(w.CycleStart, w.CycleEnd)
	if totalDays <= 0 {
		return nil, ierr.WithError(ErrInvalidCycleWindow).
			WithHintf("Cycle end %s is before cycle start %s", w.CycleEnd.Format(time.DateOnly), w.CycleStart.Format(time.DateOnly)).
			WithReportableDetails(map[string]interface{}{
				"cycle_start": w.CycleStart,
				"cycle_end":   w.CycleEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	usageStart := types.StartOfDay(w.CycleStart)
	if w.UsageStart != nil && types.StartOfDay(*w.UsageStart).After(usageStart) {
		usageStart = types.StartOfDay(*w.UsageStart)
	}
	usageEnd := types.StartOfDay(w.CycleEnd)
	if w.UsageEnd != nil && types.StartOfDay(*w.UsageEnd).Before(usageEnd) {
		usageEnd = types.StartOfDay(*w.UsageEnd)
	}

	usedDays := types.InclusiveDays(usageStart, usageEnd)
	if usedDays < 0 {
		usedDays = 0
	}

	if usedDays == totalDays {
		return &Result{Amount: types.RoundMoney(base), UsedDays: usedDays, TotalDays: totalDays}, nil
	}

	amount := base.Mul(decimal.NewFromInt(usedDays)).
		DivRound(decimal.NewFromInt(totalDays), 16)

	return &Result{
		Amount:    types.RoundMoney(amount),
		UsedDays:  usedDays,
		TotalDays: totalDays,
	}, nil
}
