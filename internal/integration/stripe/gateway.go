package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

// Gateway charges saved payment methods off-session with PaymentIntents.
// A token payload is "cus_...:pm_..." or a bare payment method id.
type Gateway struct {
	api    *client.API
	logger *logger.Logger
}

func NewGateway(cfg config.StripeConfig, log *logger.Logger) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, ierr.NewError("missing Stripe secret key").
			WithHint("Configure payment.stripe.secret_key").
			Mark(ierr.ErrValidation)
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Gateway{api: api, logger: log}, nil
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func splitPayload(payload string) (customerID, paymentMethodID string) {
	if c, pm, ok := strings.Cut(payload, ":"); ok {
		return c, pm
	}
	return "", payload
}

func (g *Gateway) ProcessPayment(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	customerID, pmID := splitPayload(req.Token.EncryptedPayload)

	params := &stripego.PaymentIntentParams{
		Amount:        stripego.Int64(types.ToSmallestUnit(req.Amount, req.Currency)),
		Currency:      stripego.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripego.String(pmID),
		Confirm:       stripego.Bool(true),
		OffSession:    stripego.Bool(true),
	}
	if customerID != "" {
		params.Customer = stripego.String(customerID)
	}
	if req.Description != "" {
		params.Description = stripego.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("tenant_id", req.TenantID)
	params.AddMetadata("invoice_id", req.InvoiceID)
	params.AddMetadata("payment_id", req.PaymentID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripego.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripego.ErrorTypeCard {
			g.logger.Infow("stripe declined charge",
				"invoice_id", req.InvoiceID,
				"decline_code", stripeErr.DeclineCode,
			)
			return &payment.ChargeResponse{
				Status:        types.PaymentStatusFailed,
				FailureReason: declineReason(stripeErr),
				Message:       stripeErr.Msg,
			}, nil
		}
		return nil, classify(err)
	}

	if pi.Status == stripego.PaymentIntentStatusSucceeded {
		return &payment.ChargeResponse{TransactionID: pi.ID, Status: types.PaymentStatusSuccess}, nil
	}
	return &payment.ChargeResponse{
		TransactionID: pi.ID,
		Status:        types.PaymentStatusFailed,
		FailureReason: types.PaymentFailureDeclined,
		Message:       "payment intent " + string(pi.Status),
	}, nil
}

func (g *Gateway) ValidateToken(ctx context.Context, token *payment.Token) error {
	customerID, pmID := splitPayload(token.EncryptedPayload)
	params := &stripego.PaymentMethodParams{}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Get(pmID, params)
	if err != nil {
		return classify(err)
	}
	if customerID != "" && (pm.Customer == nil || pm.Customer.ID != customerID) {
		return ierr.NewError("payment method is not attached to the customer").
			WithHint("The saved card belongs to another customer").
			WithReportableDetails(map[string]interface{}{"token_id": token.ID}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (g *Gateway) ReversePayment(ctx context.Context, req *payment.ReversalRequest) error {
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(req.TransactionID),
		Reason:        stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.AddMetadata("reason", req.Reason)
	params.SetIdempotencyKey("refund-" + req.TransactionID)

	if _, err := g.api.Refunds.New(params); err != nil {
		return classify(err)
	}
	return nil
}

func declineReason(e *stripego.Error) types.PaymentFailureReason {
	if e.DeclineCode == stripego.DeclineCodeInsufficientFunds {
		return types.PaymentFailureInsufficientFunds
	}
	return types.PaymentFailureDeclined
}

// classify maps stripe errors onto the gateway error contract
func classify(err error) error {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return ierr.WithError(err).WithHint("Stripe did not answer in time").Mark(ierr.ErrTimeout)
		}
		return ierr.WithError(err).WithHint("Unable to reach Stripe").Mark(ierr.ErrSystem)
	}

	b := ierr.WithError(err).
		WithHint(stripeErr.Msg).
		WithReportableDetails(map[string]interface{}{
			"status_code": stripeErr.HTTPStatusCode,
			"code":        stripeErr.Code,
			"type":        stripeErr.Type,
		})

	switch {
	case stripeErr.Code == stripego.ErrorCodeResourceMissing:
		return b.Mark(ierr.ErrNotFound)
	case stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.Type == stripego.ErrorTypeAPI:
		return b.Mark(ierr.ErrSystem)
	default:
		return b.Mark(ierr.ErrHTTPClient)
	}
}
