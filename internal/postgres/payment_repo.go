package postgres

import (
	"context"
	"encoding/json"

	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

const paymentColumns = `id, tenant_id, billing_cycle_id, invoice_id, token_id, provider, amount, currency,
	status, attempts, attempt_log, transaction_id, failure_reason,
	reversed, reversed_at, reversal_reason, reversed_by,
	created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	client *Client
}

func NewPaymentRepository(client *Client) payment.Repository {
	return &paymentRepository{client: client}
}

func scanPayment(row rowScanner) (*payment.Result, error) {
	var p payment.Result
	var attemptLog []byte
	err := row.Scan(
		&p.ID, &p.TenantID, &p.BillingCycleID, &p.InvoiceID, &p.TokenID, &p.Provider, &p.Amount, &p.Currency,
		&p.Status, &p.Attempts, &attemptLog, &p.TransactionID, &p.FailureReason,
		&p.Reversed, &p.ReversedAt, &p.ReversalReason, &p.ReversedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(attemptLog) > 0 {
		if err := json.Unmarshal(attemptLog, &p.AttemptLog); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func marshalAttempts(p *payment.Result) ([]byte, error) {
	if p.AttemptLog == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(p.AttemptLog)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode payment attempts").
			Mark(ierr.ErrInternal)
	}
	return b, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Result) error {
	attempts, err := marshalAttempts(p)
	if err != nil {
		return err
	}
	_, err = r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO payment_results (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		p.ID, p.TenantID, p.BillingCycleID, p.InvoiceID, p.TokenID, p.Provider, p.Amount, p.Currency,
		p.Status, p.Attempts, attempts, p.TransactionID, p.FailureReason,
		p.Reversed, p.ReversedAt, p.ReversalReason, p.ReversedBy,
		p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to create payment result", map[string]interface{}{
			"payment_id": p.ID,
			"invoice_id": p.InvoiceID,
		})
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Result, error) {
	return r.getOne(ctx, `WHERE id = $1`, id, map[string]interface{}{"payment_id": id})
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Result) error {
	attempts, err := marshalAttempts(p)
	if err != nil {
		return err
	}
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE payment_results SET
			status = $2, attempts = $3, attempt_log = $4, transaction_id = $5, failure_reason = $6,
			reversed = $7, reversed_at = $8, reversal_reason = $9, reversed_by = $10,
			updated_at = $11, updated_by = $12, token_id = $13, provider = $14
		WHERE id = $1`,
		p.ID, p.Status, p.Attempts, attempts, p.TransactionID, p.FailureReason,
		p.Reversed, p.ReversedAt, p.ReversalReason, p.ReversedBy,
		p.UpdatedAt, p.UpdatedBy, p.TokenID, p.Provider,
	)
	if err != nil {
		return dbError(err, "Failed to update payment result", map[string]interface{}{"payment_id": p.ID})
	}
	return requireAffected(res, "Payment result not found", map[string]interface{}{"payment_id": p.ID})
}

func (r *paymentRepository) GetSuccessfulByInvoiceID(ctx context.Context, invoiceID string) (*payment.Result, error) {
	return r.getOne(ctx, `WHERE invoice_id = $1 AND status = 'SUCCESS'`, invoiceID,
		map[string]interface{}{"invoice_id": invoiceID})
}

func (r *paymentRepository) GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*payment.Result, error) {
	return r.getOne(ctx, `WHERE invoice_id = $1 ORDER BY created_at DESC LIMIT 1`, invoiceID,
		map[string]interface{}{"invoice_id": invoiceID})
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Result, error) {
	return r.getOne(ctx, `WHERE transaction_id = $1 ORDER BY created_at DESC LIMIT 1`, transactionID,
		map[string]interface{}{"transaction_id": transactionID})
}

func (r *paymentRepository) HasSuccessfulForBillingCycle(ctx context.Context, billingCycleID string) (bool, error) {
	var exists bool
	err := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_results WHERE billing_cycle_id = $1 AND status = $2)`,
		billingCycleID, types.PaymentStatusSuccess,
	).Scan(&exists)
	if err != nil {
		return false, dbError(err, "Failed to check payments for billing cycle", map[string]interface{}{
			"billing_cycle_id": billingCycleID,
		})
	}
	return exists, nil
}

func (r *paymentRepository) getOne(ctx context.Context, clause string, arg interface{}, details map[string]interface{}) (*payment.Result, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_results `+clause, arg)
	p, err := scanPayment(row)
	if err != nil {
		return nil, dbError(err, "Payment result not found", details)
	}
	return p, nil
}

const tokenColumns = `id, tenant_id, provider, encrypted_payload, signature, expires_at,
	revoked, reusable, used_at, created_at, updated_at, created_by, updated_by`

type tokenRepository struct {
	client *Client
}

func NewTokenRepository(client *Client) payment.TokenRepository {
	return &tokenRepository{client: client}
}

func scanToken(row rowScanner) (*payment.Token, error) {
	var t payment.Token
	err := row.Scan(
		&t.ID, &t.TenantID, &t.Provider, &t.EncryptedPayload, &t.Signature, &t.ExpiresAt,
		&t.Revoked, &t.Reusable, &t.UsedAt, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) Create(ctx context.Context, t *payment.Token) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO payment_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.TenantID, t.Provider, t.EncryptedPayload, t.Signature, t.ExpiresAt,
		t.Revoked, t.Reusable, t.UsedAt, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to create payment token", map[string]interface{}{"token_id": t.ID})
	}
	return nil
}

func (r *tokenRepository) Get(ctx context.Context, id string) (*payment.Token, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM payment_tokens WHERE id = $1`, id)
	t, err := scanToken(row)
	if err != nil {
		return nil, dbError(err, "Payment token not found", map[string]interface{}{"token_id": id})
	}
	return t, nil
}

func (r *tokenRepository) GetActiveForTenant(ctx context.Context, tenantID string) (*payment.Token, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM payment_tokens
		WHERE tenant_id = $1 AND revoked = FALSE
		ORDER BY created_at DESC LIMIT 1`, tenantID)
	t, err := scanToken(row)
	if err != nil {
		return nil, dbError(err, "No active payment token for tenant", map[string]interface{}{"tenant_id": tenantID})
	}
	return t, nil
}

func (r *tokenRepository) Update(ctx context.Context, t *payment.Token) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE payment_tokens SET revoked = $2, used_at = $3, updated_at = $4, updated_by = $5
		WHERE id = $1`,
		t.ID, t.Revoked, t.UsedAt, t.UpdatedAt, t.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to update payment token", map[string]interface{}{"token_id": t.ID})
	}
	return requireAffected(res, "Payment token not found", map[string]interface{}{"token_id": t.ID})
}
