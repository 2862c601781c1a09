package integration_test

import (
	. "github.com/worksphere/billing/internal/integration"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

func TestGatewayRegistry(t *testing.T) {
	r := NewGatewayRegistry()
	_, err := r.Get(types.PaymentProviderStripe)
	assert.True(t, ierr.IsNotFound(err))

	gw := testutil.NewFakeGateway(types.PaymentProviderStripe)
	r.Register(types.PaymentProviderStripe, gw)
	got, err := r.Get(types.PaymentProviderStripe)
	require.NoError(t, err)
	assert.Same(t, gw, got)
}

func TestNewGatewayRegistryFromConfig(t *testing.T) {
	cfg := testutil.NewTestConfig()
	cfg.Payment.Moyasar.Enabled = true
	cfg.Payment.Moyasar.SecretKey = "sk_test"
	cfg.Payment.Stripe.Enabled = false

	r, err := NewGatewayRegistryFromConfig(cfg, testutil.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, []types.PaymentProvider{types.PaymentProviderMoyasar}, r.Providers())

	cfg.Payment.Razorpay.Enabled = true
	_, err = NewGatewayRegistryFromConfig(cfg, testutil.NewTestLogger())
	assert.True(t, ierr.IsValidation(err))
}
