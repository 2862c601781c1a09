package notification

import (
	"fmt"
	"time"

	"github.com/worksphere/billing/internal/types"
)

type Status string

const (
	StatusSent   Status = "SENT"
	StatusFailed Status = "FAILED"
)

// Log records the outcome of a post-payment notification
type Log struct {
	ID             string    `db:"id" json:"id"`
	Key            string    `db:"key" json:"key"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	BillingCycleID string    `db:"billing_cycle_id" json:"billing_cycle_id"`
	InvoiceID      string    `db:"invoice_id" json:"invoice_id"`
	TransactionID  string    `db:"transaction_id" json:"transaction_id"`
	Status         Status    `db:"status" json:"status"`
	Attempts       int       `db:"attempts" json:"attempts"`
	LastError      string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Key identifies a notification for dedup: tenant|cycle|invoice|txid
func Key(tenantID, cycleID, invoiceID, transactionID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, cycleID, invoiceID, transactionID)
}

func NewLog(key, tenantID, cycleID, invoiceID, transactionID string) *Log {
	return &Log{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION),
		Key:            key,
		TenantID:       tenantID,
		BillingCycleID: cycleID,
		InvoiceID:      invoiceID,
		TransactionID:  transactionID,
		CreatedAt:      time.Now().UTC(),
	}
}
