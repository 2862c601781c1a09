package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboundHeaders(t *testing.T) {
	assert.Empty(t, OutboundHeaders(context.Background(), ""))

	ctx := SetRequestID(SetTenantID(context.Background(), "tenant_a"), "req_1")
	assert.Equal(t, map[string]string{
		HeaderAuthorization: "Bearer key",
		HeaderRequestID:     "req_1",
		HeaderTenantID:      "tenant_a",
	}, OutboundHeaders(ctx, "key"))
}
