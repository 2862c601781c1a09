package invoice

import (
	"context"
	"time"
)

// SignatureResult is what a signer produces for an invoice
type SignatureResult struct {
	Signature string
	Format    string
	SignedAt  time.Time
}

// Signer produces a digital signature for an assembled invoice. The
// algorithm is owned by the implementation.
type Signer interface {
	Sign(ctx context.Context, inv *Invoice) (*SignatureResult, error)
}
