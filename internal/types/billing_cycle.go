package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

// BillingCycleStatus is the lifecycle state of a billing cycle
type BillingCycleStatus string

const (
	BillingCycleStatusScheduled       BillingCycleStatus = "SCHEDULED"
	BillingCycleStatusInProgress      BillingCycleStatus = "IN_PROGRESS"
	BillingCycleStatusCompleted       BillingCycleStatus = "COMPLETED"
	BillingCycleStatusFailed          BillingCycleStatus = "FAILED"
	BillingCycleStatusFailedExhausted BillingCycleStatus = "FAILED_EXHAUSTED"
)

var billingCycleTransitions = map[BillingCycleStatus][]BillingCycleStatus{
	BillingCycleStatusScheduled:  {BillingCycleStatusInProgress},
	BillingCycleStatusInProgress: {BillingCycleStatusCompleted, BillingCycleStatusFailed},
	BillingCycleStatusFailed:     {BillingCycleStatusInProgress, BillingCycleStatusFailedExhausted},
}

func (s BillingCycleStatus) String() string {
	return string(s)
}

func (s BillingCycleStatus) Validate() error {
	allowed := []BillingCycleStatus{
		BillingCycleStatusScheduled,
		BillingCycleStatusInProgress,
		BillingCycleStatusCompleted,
		BillingCycleStatusFailed,
		BillingCycleStatusFailedExhausted,
	}
	if lo.Contains(allowed, s) {
		return nil
	}
	return ierr.NewErrorf("invalid billing cycle status: %s", s).
		WithHint(fmt.Sprintf("Billing cycle status must be one of: %s", strings.Join(lo.Map(allowed, func(v BillingCycleStatus, _ int) string { return string(v) }), ", "))).
		Mark(ierr.ErrValidation)
}

// IsTerminal reports whether no further transition is allowed
func (s BillingCycleStatus) IsTerminal() bool {
	return s == BillingCycleStatusCompleted || s == BillingCycleStatusFailedExhausted
}

// CanTransitionTo reports whether next is a legal successor of s
func (s BillingCycleStatus) CanTransitionTo(next BillingCycleStatus) bool {
	return lo.Contains(billingCycleTransitions[s], next)
}

// BillingCycleFilter is the list filter for billing cycles
type BillingCycleFilter struct {
	*QueryFilter
	*TimeRangeFilter
	TenantIDs []string             `json:"tenant_ids,omitempty"`
	Statuses  []BillingCycleStatus `json:"statuses,omitempty"`
	// MaxRetryCount selects cycles whose retry count is strictly below the value
	MaxRetryCount *int `json:"max_retry_count,omitempty"`
}

func NewBillingCycleFilter() *BillingCycleFilter {
	return &BillingCycleFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f *BillingCycleFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *BillingCycleFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *BillingCycleFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}
