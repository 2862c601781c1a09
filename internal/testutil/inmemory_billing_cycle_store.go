package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// InMemoryBillingCycleStore implements billingcycle.Repository
type InMemoryBillingCycleStore struct {
	*InMemoryStore[*billingcycle.BillingCycle]
}

func NewInMemoryBillingCycleStore() *InMemoryBillingCycleStore {
	return &InMemoryBillingCycleStore{
		InMemoryStore: NewInMemoryStore[*billingcycle.BillingCycle](),
	}
}

func (s *InMemoryBillingCycleStore) Create(ctx context.Context, cycle *billingcycle.BillingCycle) error {
	if cycle == nil {
		return ierr.NewError("billing cycle cannot be nil").
			WithHint("Billing cycle cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if _, err := s.GetByPeriod(ctx, cycle.TenantID, cycle.PeriodStart, cycle.PeriodEnd); err == nil {
		return ierr.NewError("billing cycle already exists for period").
			WithHint("A billing cycle already exists for this tenant and period").
			WithReportableDetails(map[string]interface{}{
				"tenant_id":    cycle.TenantID,
				"period_start": cycle.PeriodStart,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, cycle.ID, cycle.Copy())
}

func (s *InMemoryBillingCycleStore) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	cycle, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("billing cycle not found").
			WithHint("Billing cycle not found").
			WithReportableDetails(map[string]interface{}{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return cycle.Copy(), nil
}

func (s *InMemoryBillingCycleStore) GetForUpdate(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryBillingCycleStore) GetByPeriod(ctx context.Context, tenantID string, start, end time.Time) (*billingcycle.BillingCycle, error) {
	items, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, c *billingcycle.BillingCycle, _ interface{}) bool {
		return c.TenantID == tenantID &&
			types.StartOfDay(c.PeriodStart).Equal(types.StartOfDay(start)) &&
			types.StartOfDay(c.PeriodEnd).Equal(types.StartOfDay(end))
	}, nil)
	if len(items) == 0 {
		return nil, ierr.NewError("billing cycle not found").
			WithHint("Billing cycle not found").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrNotFound)
	}
	return items[0].Copy(), nil
}

func (s *InMemoryBillingCycleStore) Update(ctx context.Context, cycle *billingcycle.BillingCycle) error {
	if err := s.InMemoryStore.Update(ctx, cycle.ID, cycle.Copy()); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update billing cycle").
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryBillingCycleStore) List(ctx context.Context, filter *types.BillingCycleFilter) ([]*billingcycle.BillingCycle, error) {
	if filter == nil {
		filter = types.NewBillingCycleFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, billingCycleFilterFn, billingCycleSortFn)
	if err != nil {
		return nil, err
	}
	limit := 0
	if !filter.QueryFilter.IsUnlimited() {
		limit = filter.GetLimit()
	}
	return lo.Map(paginate(items, filter.GetOffset(), limit), func(c *billingcycle.BillingCycle, _ int) *billingcycle.BillingCycle {
		return c.Copy()
	}), nil
}

func (s *InMemoryBillingCycleStore) Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, billingCycleFilterFn)
}

func billingCycleFilterFn(_ context.Context, c *billingcycle.BillingCycle, filter interface{}) bool {
	f, ok := filter.(*types.BillingCycleFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.TenantIDs) > 0 && !lo.Contains(f.TenantIDs, c.TenantID) {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, c.Status) {
		return false
	}
	if f.MaxRetryCount != nil && c.RetryCount >= *f.MaxRetryCount {
		return false
	}
	if f.TimeRangeFilter != nil && !f.TimeRangeFilter.Contains(c.PeriodStart) {
		return false
	}
	return true
}

func billingCycleSortFn(i, j *billingcycle.BillingCycle) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}
