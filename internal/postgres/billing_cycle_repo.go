package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/types"
)

const billingCycleColumns = `id, tenant_id, period_start, period_end, due_date, status, retry_count,
	invoice_id, payment_id, failure_reason, failure_message, renewal_pending_reason,
	warning_emitted, warning_emitted_at, finalized, finalized_at, completed_at,
	created_at, updated_at, created_by, updated_by`

type billingCycleRepository struct {
	client *Client
}

func NewBillingCycleRepository(client *Client) billingcycle.Repository {
	return &billingCycleRepository{client: client}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBillingCycle(row rowScanner) (*billingcycle.BillingCycle, error) {
	var c billingcycle.BillingCycle
	err := row.Scan(
		&c.ID, &c.TenantID, &c.PeriodStart, &c.PeriodEnd, &c.DueDate, &c.Status, &c.RetryCount,
		&c.InvoiceID, &c.PaymentID, &c.FailureReason, &c.FailureMessage, &c.RenewalPendingReason,
		&c.WarningEmitted, &c.WarningEmittedAt, &c.Finalized, &c.FinalizedAt, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *billingCycleRepository) Create(ctx context.Context, c *billingcycle.BillingCycle) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO billing_cycles (`+billingCycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.TenantID, c.PeriodStart, c.PeriodEnd, c.DueDate, c.Status, c.RetryCount,
		c.InvoiceID, c.PaymentID, c.FailureReason, c.FailureMessage, c.RenewalPendingReason,
		c.WarningEmitted, c.WarningEmittedAt, c.Finalized, c.FinalizedAt, c.CompletedAt,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to create billing cycle", map[string]interface{}{
			"billing_cycle_id": c.ID,
			"tenant_id":        c.TenantID,
		})
	}
	return nil
}

func (r *billingCycleRepository) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	return r.get(ctx, id, "")
}

func (r *billingCycleRepository) GetForUpdate(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *billingCycleRepository) get(ctx context.Context, id, suffix string) (*billingcycle.BillingCycle, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+billingCycleColumns+` FROM billing_cycles WHERE id = $1`+suffix, id)
	c, err := scanBillingCycle(row)
	if err != nil {
		return nil, dbError(err, "Billing cycle not found", map[string]interface{}{"billing_cycle_id": id})
	}
	return c, nil
}

func (r *billingCycleRepository) GetByPeriod(ctx context.Context, tenantID string, start, end time.Time) (*billingcycle.BillingCycle, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+billingCycleColumns+` FROM billing_cycles
		WHERE tenant_id = $1 AND period_start = $2 AND period_end = $3`,
		tenantID, start, end)
	c, err := scanBillingCycle(row)
	if err != nil {
		return nil, dbError(err, "Billing cycle not found", map[string]interface{}{
			"tenant_id":    tenantID,
			"period_start": start,
		})
	}
	return c, nil
}

func (r *billingCycleRepository) Update(ctx context.Context, c *billingcycle.BillingCycle) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE billing_cycles SET
			due_date = $2, status = $3, retry_count = $4, invoice_id = $5, payment_id = $6,
			failure_reason = $7, failure_message = $8, renewal_pending_reason = $9,
			warning_emitted = $10, warning_emitted_at = $11, finalized = $12, finalized_at = $13,
			completed_at = $14, updated_at = $15, updated_by = $16
		WHERE id = $1`,
		c.ID, c.DueDate, c.Status, c.RetryCount, c.InvoiceID, c.PaymentID,
		c.FailureReason, c.FailureMessage, c.RenewalPendingReason,
		c.WarningEmitted, c.WarningEmittedAt, c.Finalized, c.FinalizedAt,
		c.CompletedAt, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to update billing cycle", map[string]interface{}{"billing_cycle_id": c.ID})
	}
	return requireAffected(res, "Billing cycle not found", map[string]interface{}{"billing_cycle_id": c.ID})
}

func (r *billingCycleRepository) List(ctx context.Context, filter *types.BillingCycleFilter) ([]*billingcycle.BillingCycle, error) {
	if filter == nil {
		filter = types.NewBillingCycleFilter()
	}
	where, args := billingCycleWhere(filter)

	query := `SELECT ` + billingCycleColumns + ` FROM billing_cycles` + where +
		fmt.Sprintf(" ORDER BY %s %s, id", sortColumn(filter.QueryFilter.GetSort()), filter.QueryFilter.GetOrder())
	if !filter.QueryFilter.IsUnlimited() {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "Failed to list billing cycles", nil)
	}
	defer rows.Close()

	var cycles []*billingcycle.BillingCycle
	for rows.Next() {
		c, err := scanBillingCycle(rows)
		if err != nil {
			return nil, dbError(err, "Failed to read billing cycle", nil)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "Failed to list billing cycles", nil)
	}
	return cycles, nil
}

func (r *billingCycleRepository) Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error) {
	if filter == nil {
		filter = types.NewBillingCycleFilter()
	}
	where, args := billingCycleWhere(filter)

	var n int
	if err := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM billing_cycles`+where, args...).Scan(&n); err != nil {
		return 0, dbError(err, "Failed to count billing cycles", nil)
	}
	return n, nil
}

func billingCycleWhere(f *types.BillingCycleFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.TenantIDs) > 0 {
		add("tenant_id = ANY($%d)", pq.Array(f.TenantIDs))
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(lo.Map(f.Statuses, func(s types.BillingCycleStatus, _ int) string { return string(s) })))
	}
	if f.MaxRetryCount != nil {
		add("retry_count < $%d", *f.MaxRetryCount)
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil {
			add("period_start >= $%d", *f.StartTime)
		}
		if f.EndTime != nil {
			add("period_start <= $%d", *f.EndTime)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// sortColumn whitelists sortable columns
func sortColumn(sort string) string {
	switch sort {
	case "period_start", "period_end", "updated_at", "retry_count", "created_at":
		return sort
	default:
		return "created_at"
	}
}
