package types

// EventType names the domain events published to downstream consumers
type EventType string

const (
	EventBillingStarted         EventType = "billing_started"
	EventInvoiceGenerated       EventType = "invoice_generated"
	EventPaymentSuccess         EventType = "payment_success"
	EventPaymentFailed          EventType = "payment_failed"
	EventPaymentReversed        EventType = "payment_reversed"
	EventBillingCompleted       EventType = "billing_completed"
	EventBillingFailed          EventType = "billing_failed"
	EventBillingFailedExhausted EventType = "billing_failed_exhausted"
	EventPlanRenewed            EventType = "plan_renewed"
	EventRenewalFailed          EventType = "renewal_failed"
	EventCancellationWarning    EventType = "cancellation_warning"
	EventServiceSuspended       EventType = "service_suspended"
	EventSubscriptionCancelled  EventType = "subscription_cancelled"
	EventServiceReactivated     EventType = "service_reactivated"
)

func (e EventType) String() string {
	return string(e)
}
