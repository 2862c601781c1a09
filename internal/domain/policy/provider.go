package policy

import "context"

// Provider resolves the policy of a tenant. It never returns nil without an
// error; tenants without overrides get the default policy.
type Provider interface {
	GetPolicy(ctx context.Context, tenantID string) (*Policy, error)
}
