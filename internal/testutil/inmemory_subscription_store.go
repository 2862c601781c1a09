package testutil

import (
	"context"
	"sort"

	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/subscription"
	ierr "github.com/worksphere/billing/internal/errors"
)

// InMemorySubscriptionStore implements subscription.Repository, keyed by tenant
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{InMemoryStore: NewInMemoryStore[*subscription.Subscription]()}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Create(ctx, sub.TenantID, sub.Copy())
}

func (s *InMemorySubscriptionStore) GetByTenantID(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, tenantID)
	if err != nil {
		return nil, ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrNotFound)
	}
	return sub.Copy(), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Update(ctx, sub.TenantID, sub.Copy())
}

func (s *InMemorySubscriptionStore) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return !sub.Cancelled
	}, nil)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(items, func(sub *subscription.Subscription, _ int) string { return sub.TenantID })
	sort.Strings(ids)
	return ids, nil
}
