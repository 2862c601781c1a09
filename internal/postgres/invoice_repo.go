package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/types"
)

const invoiceColumns = `id, tenant_id, billing_cycle_id, currency, base_amount, prorated_amount,
	tax_amount, tax_rate, total_amount, status, issued_at, due_at,
	signed, signed_at, signature_format, signature,
	created_at, updated_at, created_by, updated_by`

type invoiceRepository struct {
	client *Client
}

func NewInvoiceRepository(client *Client) invoice.Repository {
	return &invoiceRepository{client: client}
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.BillingCycleID, &inv.Currency, &inv.BaseAmount, &inv.ProratedAmount,
		&inv.TaxAmount, &inv.TaxRate, &inv.TotalAmount, &inv.Status, &inv.IssuedAt, &inv.DueAt,
		&inv.Signed, &inv.SignedAt, &inv.SignatureFormat, &inv.Signature,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.CreatedBy, &inv.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		inv.ID, inv.TenantID, inv.BillingCycleID, inv.Currency, inv.BaseAmount, inv.ProratedAmount,
		inv.TaxAmount, inv.TaxRate, inv.TotalAmount, inv.Status, inv.IssuedAt, inv.DueAt,
		inv.Signed, inv.SignedAt, inv.SignatureFormat, inv.Signature,
		inv.CreatedAt, inv.UpdatedAt, inv.CreatedBy, inv.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to create invoice", map[string]interface{}{
			"invoice_id":       inv.ID,
			"billing_cycle_id": inv.BillingCycleID,
		})
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, dbError(err, "Invoice not found", map[string]interface{}{"invoice_id": id})
	}
	return inv, nil
}

func (r *invoiceRepository) GetByBillingCycleID(ctx context.Context, billingCycleID string) (*invoice.Invoice, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE billing_cycle_id = $1`, billingCycleID)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, dbError(err, "Invoice not found for billing cycle", map[string]interface{}{
			"billing_cycle_id": billingCycleID,
		})
	}
	return inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE invoices SET
			status = $2, signed = $3, signed_at = $4, signature_format = $5, signature = $6,
			updated_at = $7, updated_by = $8
		WHERE id = $1`,
		inv.ID, inv.Status, inv.Signed, inv.SignedAt, inv.SignatureFormat, inv.Signature,
		inv.UpdatedAt, inv.UpdatedBy,
	)
	if err != nil {
		return dbError(err, "Failed to update invoice", map[string]interface{}{"invoice_id": inv.ID})
	}
	return requireAffected(res, "Invoice not found", map[string]interface{}{"invoice_id": inv.ID})
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceHistoryFilter) ([]*invoice.Invoice, error) {
	where, args := invoiceWhere(filter)
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where
	if filter.QueryFilter != nil && filter.QueryFilter.GetOrder() == string(types.SortOrderAsc) {
		query += " ORDER BY issued_at ASC, id"
	} else {
		query += " ORDER BY issued_at DESC, id"
	}
	if !filter.QueryFilter.IsUnlimited() {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "Failed to list invoices", map[string]interface{}{"tenant_id": filter.TenantID})
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, dbError(err, "Failed to read invoice", nil)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "Failed to list invoices", nil)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceHistoryFilter) (int, error) {
	where, args := invoiceWhere(filter)
	var n int
	if err := r.client.Querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&n); err != nil {
		return 0, dbError(err, "Failed to count invoices", nil)
	}
	return n, nil
}

func invoiceWhere(f *types.InvoiceHistoryFilter) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{f.TenantID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(lo.Map(f.Statuses, func(s types.InvoiceStatus, _ int) string { return string(s) })))
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil {
			add("issued_at >= $%d", *f.StartTime)
		}
		if f.EndTime != nil {
			add("issued_at <= $%d", *f.EndTime)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
