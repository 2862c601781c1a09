package types

import (
	"context"
)

type ContextKey string

const (
	CtxRequestID      ContextKey = "ctx_request_id"
	CtxTenantID       ContextKey = "ctx_tenant_id"
	CtxUserID         ContextKey = "ctx_user_id"
	CtxBillingCycleID ContextKey = "ctx_billing_cycle_id"
	CtxDBTransaction  ContextKey = "ctx_db_transaction"

	// DefaultUserID is the actor recorded for scheduler driven operations
	DefaultUserID = "system"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(CtxTenantID).(string); ok {
		return tenantID
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok && userID != "" {
		return userID
	}
	return DefaultUserID
}

func GetBillingCycleID(ctx context.Context) string {
	if cycleID, ok := ctx.Value(CtxBillingCycleID).(string); ok {
		return cycleID
	}
	return ""
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func SetBillingCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CtxBillingCycleID, cycleID)
}
