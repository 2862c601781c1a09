package tenant

import "context"

// PaymentNotice is sent to the orchestrator after a successful charge
type PaymentNotice struct {
	TenantID       string `json:"tenant_id"`
	BillingCycleID string `json:"billing_cycle_id"`
	InvoiceID      string `json:"invoice_id"`
	TransactionID  string `json:"transaction_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

// Orchestrator controls a tenant's provisioned resources. Calls are best
// effort from the billing domain's point of view.
type Orchestrator interface {
	// SuspendTenant deactivates resources, reversibly
	SuspendTenant(ctx context.Context, tenantID, reason string) error

	// CancelTenant deprovisions resources
	CancelTenant(ctx context.Context, tenantID, reason string) error

	// ReactivateTenant restores resources after a suspension
	ReactivateTenant(ctx context.Context, tenantID string) error

	// NotifyPayment reports a settled invoice
	NotifyPayment(ctx context.Context, notice *PaymentNotice) error
}
