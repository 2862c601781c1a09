package types

import (
	"time"

	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_MAX_LIMIT     = 500
	FILTER_DEFAULT_SORT  = "created_at"
	FILTER_DEFAULT_ORDER = "desc"
)

type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// QueryFilter holds pagination and sort options shared by list queries
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset *int    `json:"offset,omitempty" validate:"omitempty,min=0"`
	Sort   *string `json:"sort,omitempty"`
	Order  *string `json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
		Sort:   lo.ToPtr(FILTER_DEFAULT_SORT),
		Order:  lo.ToPtr(FILTER_DEFAULT_ORDER),
	}
}

// NewNoLimitQueryFilter is used by internal sweeps that page manually
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
		Sort:   lo.ToPtr(FILTER_DEFAULT_SORT),
		Order:  lo.ToPtr(FILTER_DEFAULT_ORDER),
	}
}

func (f *QueryFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > FILTER_MAX_LIMIT) {
		return ierr.NewErrorf("limit must be between 1 and %d", FILTER_MAX_LIMIT).
			WithHint("Invalid page size").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset cannot be negative").
			WithHint("Invalid offset").
			Mark(ierr.ErrValidation)
	}
	if f.Order != nil && *f.Order != string(SortOrderAsc) && *f.Order != string(SortOrderDesc) {
		return ierr.NewErrorf("invalid order: %s", *f.Order).
			WithHint("Order must be asc or desc").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f *QueryFilter) GetSort() string {
	if f == nil || f.Sort == nil || *f.Sort == "" {
		return FILTER_DEFAULT_SORT
	}
	return *f.Sort
}

func (f *QueryFilter) GetOrder() string {
	if f == nil || f.Order == nil || *f.Order == "" {
		return FILTER_DEFAULT_ORDER
	}
	return *f.Order
}

func (f *QueryFilter) IsUnlimited() bool {
	return f != nil && f.Limit == nil
}

// TimeRangeFilter restricts a query to [StartTime, EndTime]
type TimeRangeFilter struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func (f *TimeRangeFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return ierr.NewError("end time must be after start time").
			WithHint("Invalid time range").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Contains reports whether t falls inside the range; open ends always match
func (f *TimeRangeFilter) Contains(t time.Time) bool {
	if f == nil {
		return true
	}
	if f.StartTime != nil && t.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && t.After(*f.EndTime) {
		return false
	}
	return true
}
