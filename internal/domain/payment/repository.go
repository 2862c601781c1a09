package payment

import "context"

// Repository defines persistence for payment results
type Repository interface {
	// Create persists a new result
	Create(ctx context.Context, r *Result) error

	Get(ctx context.Context, id string) (*Result, error)

	// Update overwrites a result
	Update(ctx context.Context, r *Result) error

	// GetSuccessfulByInvoiceID returns the successful result of an invoice or ErrNotFound
	GetSuccessfulByInvoiceID(ctx context.Context, invoiceID string) (*Result, error)

	// GetLatestByInvoiceID returns the most recent result of an invoice or ErrNotFound
	GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*Result, error)

	// GetByTransactionID returns the result holding a gateway transaction id
	GetByTransactionID(ctx context.Context, transactionID string) (*Result, error)

	// HasSuccessfulForBillingCycle reports whether any payment of the cycle succeeded
	HasSuccessfulForBillingCycle(ctx context.Context, billingCycleID string) (bool, error)
}

// TokenRepository defines persistence for payment tokens
type TokenRepository interface {
	Create(ctx context.Context, t *Token) error

	Get(ctx context.Context, id string) (*Token, error)

	// GetActiveForTenant returns the newest non-revoked token of a tenant
	GetActiveForTenant(ctx context.Context, tenantID string) (*Token, error)

	Update(ctx context.Context, t *Token) error
}
