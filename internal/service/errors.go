package service

import (
	"errors"
	"fmt"

	"github.com/worksphere/billing/internal/types"
)

// Token validation failures. Each is also marked with an ierr sentinel.
var (
	ErrTokenExpired            = errors.New("payment token expired")
	ErrTokenTenantMismatch     = errors.New("payment token belongs to another tenant")
	ErrTokenInvalidSignature   = errors.New("payment token signature is invalid")
	ErrTokenRejectedByProvider = errors.New("payment token rejected by provider")
	ErrTokenReused             = errors.New("payment token already used")
)

// ErrInvoiceSigningFailed fails invoice generation; an unsigned invoice is never stored
var ErrInvoiceSigningFailed = errors.New("invoice signing failed")

// PaymentFailure is raised when a charge did not succeed
type PaymentFailure struct {
	PaymentID   string
	Reason      types.PaymentFailureReason
	Recoverable bool
	Message     string
	Cause       error
}

func (e *PaymentFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment failed: %s", e.Reason)
	}
	return fmt.Sprintf("payment failed: %s: %s", e.Reason, e.Message)
}

func (e *PaymentFailure) Unwrap() error {
	return e.Cause
}

// AsPaymentFailure extracts a PaymentFailure from an error chain
func AsPaymentFailure(err error) (*PaymentFailure, bool) {
	var pf *PaymentFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}
