package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/types"
)

// FakeGateway is a scriptable payment.Gateway that counts its calls
type FakeGateway struct {
	mu sync.Mutex

	provider types.PaymentProvider

	ChargeErr     error
	DeclineReason types.PaymentFailureReason
	ValidateErr   error
	ReverseErr    error

	// OnCharge runs inside ProcessPayment before the scripted outcome
	OnCharge func(req *payment.ChargeRequest)

	ChargeCalls   int
	ValidateCalls int
	ReverseCalls  int
	Charges       []*payment.ChargeRequest
	Reversals     []*payment.ReversalRequest
}

func NewFakeGateway(provider types.PaymentProvider) *FakeGateway {
	return &FakeGateway{provider: provider}
}

func (g *FakeGateway) Provider() types.PaymentProvider {
	return g.provider
}

func (g *FakeGateway) ProcessPayment(_ context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ChargeCalls++
	g.Charges = append(g.Charges, req)
	if g.OnCharge != nil {
		g.OnCharge(req)
	}
	if g.ChargeErr != nil {
		return nil, g.ChargeErr
	}
	if g.DeclineReason != "" {
		return &payment.ChargeResponse{
			Status:        types.PaymentStatusFailed,
			FailureReason: g.DeclineReason,
			Message:       "card declined",
		}, nil
	}
	return &payment.ChargeResponse{
		TransactionID: fmt.Sprintf("tx_%s_%d", g.provider, g.ChargeCalls),
		Status:        types.PaymentStatusSuccess,
	}, nil
}

func (g *FakeGateway) ValidateToken(_ context.Context, _ *payment.Token) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ValidateCalls++
	return g.ValidateErr
}

func (g *FakeGateway) ReversePayment(_ context.Context, req *payment.ReversalRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ReverseCalls++
	g.Reversals = append(g.Reversals, req)
	return g.ReverseErr
}

// Reset clears scripted errors and counters
func (g *FakeGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ChargeErr, g.ValidateErr, g.ReverseErr = nil, nil, nil
	g.DeclineReason = ""
	g.OnCharge = nil
	g.ChargeCalls, g.ValidateCalls, g.ReverseCalls = 0, 0, 0
	g.Charges, g.Reversals = nil, nil
}
