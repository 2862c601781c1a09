// Package integration holds the outbound adapters and the registry that
// resolves a payment provider to its gateway.
package integration

import (
	"sync"

	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/integration/moyasar"
	"github.com/worksphere/billing/internal/integration/razorpay"
	"github.com/worksphere/billing/internal/integration/stripe"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

// GatewayRegistry maps providers to gateway adapters
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[types.PaymentProvider]payment.Gateway
}

func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[types.PaymentProvider]payment.Gateway)}
}

// Register adds or replaces the gateway of a provider. Providers outside
// the known set are accepted so tests and extensions can plug in their own.
func (r *GatewayRegistry) Register(provider types.PaymentProvider, gw payment.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[provider] = gw
}

func (r *GatewayRegistry) Get(provider types.PaymentProvider) (payment.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, ierr.NewErrorf("payment provider %s is not configured", provider).
			WithHint("Enable the provider under payment configuration").
			WithReportableDetails(map[string]interface{}{"provider": provider}).
			Mark(ierr.ErrNotFound)
	}
	return gw, nil
}

func (r *GatewayRegistry) Providers() []types.PaymentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.PaymentProvider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	return out
}

// NewGatewayRegistryFromConfig registers every enabled provider
func NewGatewayRegistryFromConfig(cfg *config.Configuration, log *logger.Logger) (*GatewayRegistry, error) {
	r := NewGatewayRegistry()
	pc := cfg.Payment

	if pc.Stripe.Enabled {
		gw, err := stripe.NewGateway(pc.Stripe, log)
		if err != nil {
			return nil, err
		}
		r.Register(types.PaymentProviderStripe, gw)
	}
	if pc.Razorpay.Enabled {
		gw, err := razorpay.NewGateway(pc.Razorpay, log)
		if err != nil {
			return nil, err
		}
		r.Register(types.PaymentProviderRazorpay, gw)
	}
	if pc.Moyasar.Enabled {
		client, err := moyasar.NewClient(pc.Moyasar, cfg.Billing.Timeouts.Gateway, log)
		if err != nil {
			return nil, err
		}
		r.Register(types.PaymentProviderMoyasar, moyasar.NewGateway(client))
	}

	log.Infow("payment gateways registered", "providers", r.Providers())
	return r, nil
}
