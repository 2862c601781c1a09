package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/types"
)

// ChargeRequest is what the orchestrator hands a gateway adapter
type ChargeRequest struct {
	TenantID       string
	InvoiceID      string
	PaymentID      string
	Amount         decimal.Decimal
	Currency       string
	Token          *Token
	IdempotencyKey string
	Description    string
}

// ChargeResponse is the gateway's answer to a successful charge call
type ChargeResponse struct {
	TransactionID string
	Status        types.PaymentStatus
	// FailureReason is set when the gateway declined without a transport error
	FailureReason types.PaymentFailureReason
	Message       string
}

// ReversalRequest refunds a captured transaction in full
type ReversalRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Reason        string
}

// Gateway is a payment provider adapter
type Gateway interface {
	Provider() types.PaymentProvider

	// ProcessPayment charges the token. A transport or provider error is
	// returned as error; a decline is a response with status FAILED.
	ProcessPayment(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)

	// ValidateToken asks the provider whether the token can still be charged
	ValidateToken(ctx context.Context, token *Token) error

	// ReversePayment refunds a previously successful transaction
	ReversePayment(ctx context.Context, req *ReversalRequest) error
}

// Adapters mark their errors so the orchestrator can classify them:
// ierr.ErrTimeout for deadlines, ierr.ErrSystem for connection failures and
// 5xx answers, ierr.ErrHTTPClient for 4xx answers, ierr.ErrValidation for
// requests the provider can never accept. The first two are recoverable.
