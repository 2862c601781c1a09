package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/types"
)

const auditLogColumns = `id, tenant_id, billing_cycle_id, invoice_id, operation_type, actor, timestamp, details`

type auditLogRepository struct {
	client *Client
}

func NewAuditLogRepository(client *Client) auditlog.Repository {
	return &auditLogRepository{client: client}
}

func (r *auditLogRepository) Create(ctx context.Context, l *auditlog.BillingOperationLog) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO billing_operation_logs (`+auditLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.TenantID, l.BillingCycleID, l.InvoiceID, l.OperationType, l.Actor, l.Timestamp, l.Details,
	)
	if err != nil {
		return dbError(err, "Failed to write billing operation log", map[string]interface{}{
			"tenant_id":      l.TenantID,
			"operation_type": l.OperationType,
		})
	}
	return nil
}

func (r *auditLogRepository) List(ctx context.Context, filter *types.BillingOperationLogFilter) ([]*auditlog.BillingOperationLog, error) {
	where, args := auditLogWhere(filter)

	order := "DESC"
	if filter.Asc {
		order = "ASC"
	}
	column := "timestamp"
	if filter.SortBy == types.AuditSortOperationType {
		column = "operation_type"
	}

	query := fmt.Sprintf(`SELECT %s FROM billing_operation_logs%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		auditLogColumns, where, column, order, len(args)+1, len(args)+2)
	args = append(args, filter.Size, filter.Offset())

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "Failed to query billing operation logs", nil)
	}
	defer rows.Close()

	var logs []*auditlog.BillingOperationLog
	for rows.Next() {
		var l auditlog.BillingOperationLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.BillingCycleID, &l.InvoiceID, &l.OperationType, &l.Actor, &l.Timestamp, &l.Details); err != nil {
			return nil, dbError(err, "Failed to read billing operation log", nil)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "Failed to query billing operation logs", nil)
	}
	return logs, nil
}

func (r *auditLogRepository) Count(ctx context.Context, filter *types.BillingOperationLogFilter) (int, error) {
	where, args := auditLogWhere(filter)
	var n int
	if err := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM billing_operation_logs`+where, args...).Scan(&n); err != nil {
		return 0, dbError(err, "Failed to count billing operation logs", nil)
	}
	return n, nil
}

func auditLogWhere(f *types.BillingOperationLogFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.BillingCycleID != "" {
		add("billing_cycle_id = $%d", f.BillingCycleID)
	}
	if f.OperationType != "" {
		add("operation_type = $%d", f.OperationType)
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil {
			add("timestamp >= $%d", *f.StartTime)
		}
		if f.EndTime != nil {
			add("timestamp <= $%d", *f.EndTime)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
