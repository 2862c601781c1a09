package postgres

import (
	"context"

	"github.com/worksphere/billing/internal/domain/notification"
)

type notificationRepository struct {
	client *Client
}

func NewNotificationRepository(client *Client) notification.Repository {
	return &notificationRepository{client: client}
}

func (r *notificationRepository) Create(ctx context.Context, l *notification.Log) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO notification_logs
			(id, key, tenant_id, billing_cycle_id, invoice_id, transaction_id, status, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.Key, l.TenantID, l.BillingCycleID, l.InvoiceID, l.TransactionID, l.Status, l.Attempts, l.LastError, l.CreatedAt,
	)
	if err != nil {
		return dbError(err, "Failed to write notification log", map[string]interface{}{"key": l.Key})
	}
	return nil
}

func (r *notificationRepository) HasSuccessful(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_logs WHERE key = $1 AND status = $2)`,
		key, notification.StatusSent,
	).Scan(&exists)
	if err != nil {
		return false, dbError(err, "Failed to check notification log", map[string]interface{}{"key": key})
	}
	return exists, nil
}
