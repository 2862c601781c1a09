package notification

import (
	"context"

	"github.com/worksphere/billing/internal/domain/invoice"
)

// Repository defines persistence for notification logs
type Repository interface {
	Create(ctx context.Context, log *Log) error

	// HasSuccessful reports whether a SENT log exists for the key
	HasSuccessful(ctx context.Context, key string) (bool, error)
}

// InvoiceMailer delivers an invoice to the tenant's billing contact
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, to string, inv *invoice.Invoice) error
}
