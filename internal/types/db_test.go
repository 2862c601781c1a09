package types

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestGenerateLockKey(t *testing.T) {
	t.Run("sorted params with tenant from context", func(t *testing.T) {
		ctx := SetTenantID(context.Background(), "tenant-1")
		key := GenerateLockKey(ctx, LockScopeBillingCycle, map[string]interface{}{"billing_cycle_id": "bc_1"})
		assert.Equal(t, "billing_cycle:billing_cycle_id=bc_1:tenant_id=tenant-1", key)
	})

	t.Run("params override context", func(t *testing.T) {
		ctx := SetTenantID(context.Background(), "tenant-1")
		key := GenerateLockKey(ctx, LockScopeSubscription, map[string]interface{}{"tenant_id": "tenant-2"})
		assert.Equal(t, "subscription:tenant_id=tenant-2", key)
	})

	t.Run("helpers are stable", func(t *testing.T) {
		assert.Equal(t, BillingCycleLockKey("t", "c"), BillingCycleLockKey("t", "c"))
		assert.NotEqual(t, BillingCycleLockKey("t", "c1"), BillingCycleLockKey("t", "c2"))
		assert.Equal(t, "subscription:tenant_id=t", SubscriptionLockKey("t"))
	})
}

func TestLockRequest_GetTimeout(t *testing.T) {
	assert.Equal(t, DefaultLockTimeout, LockRequest{Key: "k"}.GetTimeout())
	assert.Equal(t, time.Duration(0), LockRequest{Key: "k", Timeout: lo.ToPtr(time.Duration(0))}.GetTimeout())
}

func TestBillingCycleStatus_Transitions(t *testing.T) {
	assert.True(t, BillingCycleStatusScheduled.CanTransitionTo(BillingCycleStatusInProgress))
	assert.True(t, BillingCycleStatusFailed.CanTransitionTo(BillingCycleStatusInProgress))
	assert.True(t, BillingCycleStatusFailed.CanTransitionTo(BillingCycleStatusFailedExhausted))
	assert.False(t, BillingCycleStatusCompleted.CanTransitionTo(BillingCycleStatusInProgress))
	assert.False(t, BillingCycleStatusFailedExhausted.CanTransitionTo(BillingCycleStatusFailed))
	assert.True(t, BillingCycleStatusCompleted.IsTerminal())
	assert.Error(t, BillingCycleStatus("bogus").Validate())
}
