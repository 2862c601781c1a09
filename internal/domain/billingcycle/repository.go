package billingcycle

import (
	"context"
	"time"

	"github.com/worksphere/billing/internal/types"
)

// Repository defines persistence for billing cycles
type Repository interface {
	// Create persists a new cycle. It fails with ErrAlreadyExists when the
	// tenant already has a cycle for the same period.
	Create(ctx context.Context, cycle *BillingCycle) error

	// Get fetches a cycle by id
	Get(ctx context.Context, id string) (*BillingCycle, error)

	// GetForUpdate fetches a cycle holding a row lock for the current transaction
	GetForUpdate(ctx context.Context, id string) (*BillingCycle, error)

	// GetByPeriod fetches the tenant's cycle starting and ending on the given dates
	GetByPeriod(ctx context.Context, tenantID string, start, end time.Time) (*BillingCycle, error)

	// Update overwrites a cycle
	Update(ctx context.Context, cycle *BillingCycle) error

	// List returns cycles matching the filter
	List(ctx context.Context, filter *types.BillingCycleFilter) ([]*BillingCycle, error)

	// Count returns the number of cycles matching the filter
	Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error)
}
