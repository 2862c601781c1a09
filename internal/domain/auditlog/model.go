package auditlog

import (
	"context"
	"time"

	"github.com/worksphere/billing/internal/types"
)

// BillingOperationLog is one audit entry. The csv tags define the export layout.
type BillingOperationLog struct {
	ID             string              `db:"id" json:"id" csv:"id"`
	TenantID       string              `db:"tenant_id" json:"tenant_id" csv:"tenant_id"`
	BillingCycleID string              `db:"billing_cycle_id" json:"billing_cycle_id,omitempty" csv:"billing_cycle_id"`
	InvoiceID      string              `db:"invoice_id" json:"invoice_id,omitempty" csv:"invoice_id"`
	OperationType  types.OperationType `db:"operation_type" json:"operation_type" csv:"operation_type"`
	Actor          string              `db:"actor" json:"actor" csv:"actor"`
	Timestamp      time.Time           `db:"timestamp" json:"timestamp" csv:"timestamp"`
	Details        string              `db:"details" json:"details,omitempty" csv:"details"`
}

func New(ctx context.Context, tenantID string, op types.OperationType, details string) *BillingOperationLog {
	return &BillingOperationLog{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT_LOG),
		TenantID:      tenantID,
		OperationType: op,
		Actor:         types.GetUserID(ctx),
		Timestamp:     time.Now().UTC(),
		Details:       details,
	}
}

func (l *BillingOperationLog) WithCycle(cycleID string) *BillingOperationLog {
	l.BillingCycleID = cycleID
	return l
}

func (l *BillingOperationLog) WithInvoice(invoiceID string) *BillingOperationLog {
	l.InvoiceID = invoiceID
	return l
}
