package invoice

import (
	"context"

	"github.com/worksphere/billing/internal/types"
)

// Repository defines persistence for invoices
type Repository interface {
	// Create persists a new invoice. A second invoice for the same billing
	// cycle fails with ErrAlreadyExists.
	Create(ctx context.Context, inv *Invoice) error

	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByBillingCycleID returns ErrNotFound when the cycle has no invoice yet
	GetByBillingCycleID(ctx context.Context, billingCycleID string) (*Invoice, error)

	Update(ctx context.Context, inv *Invoice) error

	// List returns a tenant's invoices ordered and paginated per the filter
	List(ctx context.Context, filter *types.InvoiceHistoryFilter) ([]*Invoice, error)

	Count(ctx context.Context, filter *types.InvoiceHistoryFilter) (int, error)
}
