package auditlog

import (
	"context"

	"github.com/worksphere/billing/internal/types"
)

// Repository defines persistence for the billing operation log
type Repository interface {
	Create(ctx context.Context, log *BillingOperationLog) error

	// List honors the filter's tenant, cycle, operation, time range, page, size and sort
	List(ctx context.Context, filter *types.BillingOperationLogFilter) ([]*BillingOperationLog, error)

	Count(ctx context.Context, filter *types.BillingOperationLogFilter) (int, error)
}
