package events

import (
	"context"
	"time"

	"github.com/worksphere/billing/internal/types"
)

// BillingEvent is a uniquely identified domain event. Consumers dedupe on ID.
type BillingEvent struct {
	ID             string                 `json:"id"`
	TenantID       string                 `json:"tenant_id"`
	BillingCycleID string                 `json:"billing_cycle_id,omitempty"`
	InvoiceID      string                 `json:"invoice_id,omitempty"`
	Type           types.EventType        `json:"type"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

func NewBillingEvent(tenantID string, eventType types.EventType, payload map[string]interface{}) *BillingEvent {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &BillingEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		TenantID:  tenantID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func (e *BillingEvent) WithCycle(cycleID string) *BillingEvent {
	e.BillingCycleID = cycleID
	return e
}

func (e *BillingEvent) WithInvoice(invoiceID string) *BillingEvent {
	e.InvoiceID = invoiceID
	return e
}

// PartitionKey keeps events of a tenant and type ordered on one partition
func (e *BillingEvent) PartitionKey() string {
	return e.TenantID + "-" + string(e.Type) + "-" + e.ID
}

// Publisher emits billing events
type Publisher interface {
	Publish(ctx context.Context, event *BillingEvent) error
}
