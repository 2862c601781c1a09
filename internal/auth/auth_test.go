package auth

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/domain/invoice"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

func TestTokenSigner(t *testing.T) {
	s := NewTokenSigner("secret")
	sig, err := s.Sign("tenant_1", "cus_1:pm_1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.Verify(sig, "tenant_1", "cus_1:pm_1"))

	tests := []struct {
		name      string
		signer    *TokenSigner
		signature string
		tenantID  string
		payload   string
	}{
		{"other tenant", s, sig, "tenant_2", "cus_1:pm_1"},
		{"altered payload", s, sig, "tenant_1", "cus_1:pm_2"},
		{"wrong secret", NewTokenSigner("other"), sig, "tenant_1", "cus_1:pm_1"},
		{"garbage", s, "not-a-jwt", "tenant_1", "cus_1:pm_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.signer.Verify(tt.signature, tt.tenantID, tt.payload)
			assert.True(t, ierr.IsPermissionDenied(err))
		})
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	s := NewTokenSigner("secret")
	sig, err := s.Sign("tenant_1", "p", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, ierr.IsPermissionDenied(s.Verify(sig, "tenant_1", "p")))
}

func TestInvoiceSigner(t *testing.T) {
	inv := &invoice.Invoice{
		ID:          "inv_1",
		TotalAmount: decimal.RequireFromString("1190"),
		IssuedAt:    time.Now(),
		BaseModel:   types.BaseModel{TenantID: "tenant_1"},
	}
	s := NewInvoiceSigner("secret")
	res, err := s.Sign(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, SignatureFormatJWS, res.Format)

	inv.Signature = res.Signature
	assert.True(t, s.VerifyInvoice(inv))

	inv.TotalAmount = decimal.RequireFromString("1.00")
	assert.False(t, s.VerifyInvoice(inv))

	_, err = NewInvoiceSigner("").Sign(context.Background(), inv)
	assert.True(t, ierr.IsInternal(err))
}
