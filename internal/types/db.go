package types

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LockScope represents the scope of an exclusive lock
type LockScope string

const (
	// LockScopeBillingCycle serializes saga execution per (tenant, cycle)
	LockScopeBillingCycle LockScope = "billing_cycle"
	// LockScopeSubscription serializes subscription mutations per tenant
	LockScopeSubscription LockScope = "subscription"
	// LockScopeScheduler guards cycle creation per (tenant, period)
	LockScopeScheduler LockScope = "scheduler"

	DefaultLockTimeout = 30 * time.Second
)

// LockRequest describes a lock acquisition
type LockRequest struct {
	Key string
	// Timeout bounds the wait. Nil means DefaultLockTimeout, zero or negative
	// means fail fast when the lock is held.
	Timeout *time.Duration
}

func (r LockRequest) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return DefaultLockTimeout
	}
	return *r.Timeout
}

// GenerateLockKey builds "scope:k1=v1:k2=v2" with sorted keys. The tenant id
// from the context is included unless params override it.
func GenerateLockKey(ctx context.Context, scope LockScope, params map[string]interface{}) string {
	merged := make(map[string]interface{}, len(params)+1)
	if tenantID := GetTenantID(ctx); tenantID != "" {
		merged["tenant_id"] = tenantID
	}
	for k, v := range params {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, merged[k]))
	}
	return b.String()
}

// BillingCycleLockKey is the key shared by the idempotency check and the completion marker
func BillingCycleLockKey(tenantID, cycleID string) string {
	return GenerateLockKey(context.Background(), LockScopeBillingCycle, map[string]interface{}{
		"tenant_id":        tenantID,
		"billing_cycle_id": cycleID,
	})
}

// SubscriptionLockKey is the per-tenant key for subscription mutations
func SubscriptionLockKey(tenantID string) string {
	return GenerateLockKey(context.Background(), LockScopeSubscription, map[string]interface{}{
		"tenant_id": tenantID,
	})
}

// TableName represents a database table name
type TableName string

const (
	TableNameBillingCycles        TableName = "billing_cycles"
	TableNameInvoices             TableName = "invoices"
	TableNamePaymentResults       TableName = "payment_results"
	TableNamePaymentTokens        TableName = "payment_tokens"
	TableNameSubscriptions        TableName = "subscriptions"
	TableNameBillingOperationLogs TableName = "billing_operation_logs"
	TableNameNotificationLogs     TableName = "notification_logs"
	TableNameTaxRules             TableName = "tax_rules"
)
