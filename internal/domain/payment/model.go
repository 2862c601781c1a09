package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/types"
)

// Result is the persisted outcome of charging an invoice
type Result struct {
	ID             string                     `db:"id" json:"id"`
	BillingCycleID string                     `db:"billing_cycle_id" json:"billing_cycle_id"`
	InvoiceID      string                     `db:"invoice_id" json:"invoice_id"`
	TokenID        string                     `db:"token_id" json:"token_id"`
	Provider       types.PaymentProvider      `db:"provider" json:"provider"`
	Amount         decimal.Decimal            `db:"amount" json:"amount"`
	Currency       string                     `db:"currency" json:"currency"`
	Status         types.PaymentStatus        `db:"status" json:"status"`
	Attempts       int                        `db:"attempts" json:"attempts"`
	AttemptLog     []Attempt                  `db:"attempt_log" json:"attempt_log"`
	TransactionID  string                     `db:"transaction_id" json:"transaction_id,omitempty"`
	FailureReason  types.PaymentFailureReason `db:"failure_reason" json:"failure_reason,omitempty"`

	Reversed       bool       `db:"reversed" json:"reversed"`
	ReversedAt     *time.Time `db:"reversed_at" json:"reversed_at,omitempty"`
	ReversalReason string     `db:"reversal_reason" json:"reversal_reason,omitempty"`
	ReversedBy     string     `db:"reversed_by" json:"reversed_by,omitempty"`

	types.BaseModel
}

// Attempt is one gateway call recorded on a payment result
type Attempt struct {
	ID            string                     `json:"id"`
	Number        int                        `json:"number"`
	Status        types.PaymentStatus        `json:"status"`
	TransactionID string                     `json:"transaction_id,omitempty"`
	FailureReason types.PaymentFailureReason `json:"failure_reason,omitempty"`
	Error         string                     `json:"error,omitempty"`
	AttemptedAt   time.Time                  `json:"attempted_at"`
}

func (r *Result) IsSuccessful() bool {
	return r.Status == types.PaymentStatusSuccess
}

// RecordAttempt appends an attempt and bumps the counter
func (r *Result) RecordAttempt(a Attempt) {
	r.Attempts++
	a.Number = r.Attempts
	if a.ID == "" {
		a.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_ATTEMPT)
	}
	r.AttemptLog = append(r.AttemptLog, a)
}

func (r *Result) Copy() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	cp.AttemptLog = append([]Attempt(nil), r.AttemptLog...)
	if r.ReversedAt != nil {
		t := *r.ReversedAt
		cp.ReversedAt = &t
	}
	return &cp
}

// Token is a stored gateway credential for a tenant. EncryptedPayload is the
// opaque gateway reference; Signature is an HS256 JWT binding it to the tenant.
type Token struct {
	ID               string                `db:"id" json:"id"`
	Provider         types.PaymentProvider `db:"provider" json:"provider"`
	EncryptedPayload string                `db:"encrypted_payload" json:"-"`
	Signature        string                `db:"signature" json:"-"`
	ExpiresAt        time.Time             `db:"expires_at" json:"expires_at"`
	Revoked          bool                  `db:"revoked" json:"revoked"`
	Reusable         bool                  `db:"reusable" json:"reusable"`
	UsedAt           *time.Time            `db:"used_at" json:"used_at,omitempty"`
	types.BaseModel
}

// IsValid reports the token is neither revoked nor expired at now
func (t *Token) IsValid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// IsConsumed reports a single-use token that was already charged
func (t *Token) IsConsumed() bool {
	return !t.Reusable && t.UsedAt != nil
}

func (t *Token) Copy() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	if t.UsedAt != nil {
		v := *t.UsedAt
		cp.UsedAt = &v
	}
	return &cp
}
