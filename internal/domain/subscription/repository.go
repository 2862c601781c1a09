package subscription

import "context"

// Repository defines persistence for subscriptions
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error

	// GetByTenantID returns the tenant's subscription or ErrNotFound
	GetByTenantID(ctx context.Context, tenantID string) (*Subscription, error)

	Update(ctx context.Context, sub *Subscription) error

	// ListActiveTenantIDs returns tenants whose subscription is not cancelled
	ListActiveTenantIDs(ctx context.Context) ([]string, error)
}
