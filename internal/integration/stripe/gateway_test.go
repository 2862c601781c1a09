package stripe_test

import (
	. "github.com/worksphere/billing/internal/integration/stripe"

	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

func TestNewGateway_RequiresKey(t *testing.T) {
	_, err := NewGateway(config.StripeConfig{Enabled: true}, testutil.NewTestLogger())
	assert.True(t, ierr.IsValidation(err))
}

func TestSplitPayload(t *testing.T) {
	c, pm := SplitPayload("cus_1:pm_1")
	assert.Equal(t, "cus_1", c)
	assert.Equal(t, "pm_1", pm)

	c, pm = SplitPayload("pm_2")
	assert.Empty(t, c)
	assert.Equal(t, "pm_2", pm)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"rate limited", &stripego.Error{HTTPStatusCode: http.StatusTooManyRequests}, ierr.IsSystem},
		{"server error", &stripego.Error{HTTPStatusCode: http.StatusInternalServerError, Type: stripego.ErrorTypeAPI}, ierr.IsSystem},
		{"bad request", &stripego.Error{HTTPStatusCode: http.StatusBadRequest, Type: stripego.ErrorTypeInvalidRequest}, ierr.IsHTTPClient},
		{"missing", &stripego.Error{HTTPStatusCode: http.StatusNotFound, Code: stripego.ErrorCodeResourceMissing}, ierr.IsNotFound},
		{"deadline", context.DeadlineExceeded, ierr.IsTimeout},
		{"connection", errors.New("connection reset by peer"), ierr.IsSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(Classify(tt.err)))
		})
	}
}

func TestDeclineReason(t *testing.T) {
	assert.Equal(t, types.PaymentFailureInsufficientFunds,
		DeclineReason(&stripego.Error{DeclineCode: stripego.DeclineCodeInsufficientFunds}))
	assert.Equal(t, types.PaymentFailureDeclined,
		DeclineReason(&stripego.Error{DeclineCode: stripego.DeclineCodeGenericDecline}))
}
