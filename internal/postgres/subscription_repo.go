package postgres

import (
	"context"

	"github.com/worksphere/billing/internal/domain/subscription"
)

const subscriptionColumns = `id, tenant_id, plan_code, plan_type, tier, country, currency, email, provider,
	payment_token_id, contract_end_date, current_period_start, current_period_end,
	last_renewed_cycle_id, last_renewed_at, suspended, suspended_at, suspension_reason,
	cancelled, cancelled_at, cancellation_reason, created_at, updated_at, created_by, updated_by`

type subscriptionRepository struct {
	client *Client
}

func NewSubscriptionRepository(client *Client) subscription.Repository {
	return &subscriptionRepository{client: client}
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.TenantID, &s.PlanCode, &s.PlanType, &s.Tier, &s.Country, &s.Currency, &s.Email, &s.Provider,
		&s.PaymentTokenID, &s.ContractEndDate, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.LastRenewedCycleID, &s.LastRenewedAt, &s.Suspended, &s.SuspendedAt, &s.SuspensionReason,
		&s.Cancelled, &s.CancelledAt, &s.CancellationReason, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		s.ID, s.TenantID, s.PlanCode, s.PlanType, s.Tier, s.Country, s.Currency, s.Email, s.Provider,
		s.PaymentTokenID, s.ContractEndDate, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.LastRenewedCycleID, s.LastRenewedAt, s.Suspended, s.SuspendedAt, s.SuspensionReason,
		s.Cancelled, s.CancelledAt, s.CancellationReason, s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to create subscription", map[string]interface{}{"tenant_id": s.TenantID})
	}
	return nil
}

func (r *subscriptionRepository) GetByTenantID(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, dbError(err, "Subscription not found", map[string]interface{}{"tenant_id": tenantID})
	}
	return s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE subscriptions SET
			plan_code = $2, plan_type = $3, tier = $4, country = $5, currency = $6, email = $7, provider = $8,
			payment_token_id = $9, contract_end_date = $10, current_period_start = $11, current_period_end = $12,
			last_renewed_cycle_id = $13, last_renewed_at = $14, suspended = $15, suspended_at = $16,
			suspension_reason = $17, cancelled = $18, cancelled_at = $19, cancellation_reason = $20,
			updated_at = $21, updated_by = $22
		WHERE id = $1`,
		s.ID, s.PlanCode, s.PlanType, s.Tier, s.Country, s.Currency, s.Email, s.Provider,
		s.PaymentTokenID, s.ContractEndDate, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.LastRenewedCycleID, s.LastRenewedAt, s.Suspended, s.SuspendedAt,
		s.SuspensionReason, s.Cancelled, s.CancelledAt, s.CancellationReason,
		s.UpdatedAt, s.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to update subscription", map[string]interface{}{"tenant_id": s.TenantID})
	}
	return requireAffected(res, "Subscription not found", map[string]interface{}{"tenant_id": s.TenantID})
}

func (r *subscriptionRepository) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.client.Querier(ctx).QueryContext(ctx,
		`SELECT tenant_id FROM subscriptions WHERE cancelled = FALSE ORDER BY tenant_id`)
	if err != nil {
		return nil, dbError(err, "Failed to list active tenants", nil)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err, "Failed to read tenant id", nil)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "Failed to list active tenants", nil)
	}
	return ids, nil
}
