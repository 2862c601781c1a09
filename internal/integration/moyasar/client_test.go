package moyasar_test

import (
	. "github.com/worksphere/billing/internal/integration/moyasar"

	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.MoyasarConfig{
		Enabled:   true,
		BaseURL:   srv.URL,
		SecretKey: "sk_test",
		RetryMax:  0,
	}, 2*time.Second, testutil.NewTestLogger())
	require.NoError(t, err)
	return NewGateway(client)
}

func TestNewClient_RequiresSecret(t *testing.T) {
	_, err := NewClient(config.MoyasarConfig{}, time.Second, testutil.NewTestLogger())
	assert.True(t, ierr.IsValidation(err))
}

func TestProcessPayment_Paid(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Equal(t, "/payments", r.URL.Path)

		var req CreatePaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(119000), req.Amount)
		assert.Equal(t, "SAR", req.Currency)
		assert.Equal(t, "inv_1", req.GivenID)
		assert.Equal(t, "tok_provider", req.Source.Token)

		_ = json.NewEncoder(w).Encode(Payment{ID: "pay_m1", Status: PaymentStatusPaid, Amount: req.Amount})
	})

	resp, err := g.ProcessPayment(context.Background(), &payment.ChargeRequest{
		TenantID:       "tenant-1",
		InvoiceID:      "inv_1",
		Amount:         decimal.RequireFromString("1190.00"),
		Currency:       "sar",
		Token:          &payment.Token{EncryptedPayload: "tok_provider"},
		IdempotencyKey: "inv_1",
	})
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusSuccess, resp.Status)
	assert.Equal(t, "pay_m1", resp.TransactionID)
}

func TestProcessPayment_Declined(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Payment{
			ID:     "pay_m2",
			Status: PaymentStatusFailed,
			Source: &PaymentSource{Type: PaymentSourceTypeToken, Message: "INSUFFICIENT_FUNDS"},
		})
	})

	resp, err := g.ProcessPayment(context.Background(), &payment.ChargeRequest{
		Amount: decimal.NewFromInt(10),
		Token:  &payment.Token{EncryptedPayload: "tok"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusFailed, resp.Status)
	assert.Equal(t, types.PaymentFailureDeclined, resp.FailureReason)
	assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Message)
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"server error is recoverable", http.StatusBadGateway, ierr.IsSystem},
		{"client error is not", http.StatusUnprocessableEntity, ierr.IsHTTPClient},
		{"missing resource", http.StatusNotFound, ierr.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Type: "api_error", Message: "nope"})
			})
			err := g.ReversePayment(context.Background(), &payment.ReversalRequest{
				TransactionID: "pay_m1",
				Amount:        decimal.NewFromInt(5),
				Currency:      "SAR",
			})
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestValidateToken_Inactive(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/tok_provider", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Token{ID: "tok_provider", Status: TokenStatusInactive})
	})

	err := g.ValidateToken(context.Background(), &payment.Token{ID: "tok_1", EncryptedPayload: "tok_provider"})
	assert.True(t, ierr.IsValidation(err))
}
