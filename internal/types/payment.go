package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// PaymentProvider identifies a gateway adapter
type PaymentProvider string

const (
	PaymentProviderStripe   PaymentProvider = "stripe"
	PaymentProviderRazorpay PaymentProvider = "razorpay"
	PaymentProviderMoyasar  PaymentProvider = "moyasar"
)

var KnownPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderRazorpay,
	PaymentProviderMoyasar,
}

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	if lo.Contains(KnownPaymentProviders, p) {
		return nil
	}
	return ierr.NewErrorf("unsupported payment provider: %s", p).
		WithHint(fmt.Sprintf("Payment provider must be one of: %s", strings.Join(lo.Map(KnownPaymentProviders, func(v PaymentProvider, _ int) string { return string(v) }), ", "))).
		Mark(ierr.ErrValidation)
}

// PaymentFailureReason is a machine readable cause for a failed charge
type PaymentFailureReason string

const (
	PaymentFailureDeclined          PaymentFailureReason = "DECLINED"
	PaymentFailureInsufficientFunds PaymentFailureReason = "INSUFFICIENT_FUNDS"
	PaymentFailureGatewayTimeout    PaymentFailureReason = "GATEWAY_TIMEOUT"
	PaymentFailureGatewayError      PaymentFailureReason = "GATEWAY_ERROR"
	PaymentFailureInvalidToken      PaymentFailureReason = "INVALID_TOKEN"
	PaymentFailureProviderMissing   PaymentFailureReason = "PROVIDER_NOT_CONFIGURED"
)
