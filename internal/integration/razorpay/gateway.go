package razorpay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

// Gateway charges razorpay recurring tokens. A token payload is
// "cust_...:token_...".
type Gateway struct {
	client *rzp.Client
	logger *logger.Logger
}

func NewGateway(cfg config.RazorpayConfig, log *logger.Logger) (*Gateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, ierr.NewError("missing Razorpay credentials").
			WithHint("Configure payment.razorpay.key_id and key_secret").
			Mark(ierr.ErrValidation)
	}
	return &Gateway{client: rzp.NewClient(cfg.KeyID, cfg.KeySecret), logger: log}, nil
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderRazorpay
}

func parsePayload(payload string) (customerID, tokenID string, err error) {
	customerID, tokenID, ok := strings.Cut(payload, ":")
	if !ok || customerID == "" || tokenID == "" {
		return "", "", ierr.NewError("malformed razorpay token payload").
			WithHint("Razorpay tokens must carry customer and token ids").
			Mark(ierr.ErrValidation)
	}
	return customerID, tokenID, nil
}

func (g *Gateway) ProcessPayment(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	customerID, tokenID, err := parsePayload(req.Token.EncryptedPayload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	currency := strings.ToUpper(req.Currency)
	amount := types.ToSmallestUnit(req.Amount, currency)
	notes := map[string]interface{}{
		"tenant_id":  req.TenantID,
		"invoice_id": req.InvoiceID,
		"payment_id": req.PaymentID,
	}

	order, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  req.IdempotencyKey,
		"notes":    notes,
	}, nil)
	if err != nil {
		return nil, classify(err)
	}
	orderID, _ := order["id"].(string)

	resp, err := g.client.Payment.CreateRecurringPayment(map[string]interface{}{
		"amount":      amount,
		"currency":    currency,
		"order_id":    orderID,
		"customer_id": customerID,
		"token":       tokenID,
		"recurring":   "1",
		"description": req.Description,
		"notes":       notes,
	}, nil)
	if err != nil {
		return nil, classify(err)
	}

	paymentID, _ := resp["razorpay_payment_id"].(string)
	if paymentID == "" {
		return &payment.ChargeResponse{
			Status:        types.PaymentStatusFailed,
			FailureReason: types.PaymentFailureDeclined,
			Message:       fmt.Sprintf("razorpay returned no payment for order %s", orderID),
		}, nil
	}
	return &payment.ChargeResponse{TransactionID: paymentID, Status: types.PaymentStatusSuccess}, nil
}

func (g *Gateway) ValidateToken(ctx context.Context, token *payment.Token) error {
	customerID, tokenID, err := parsePayload(token.EncryptedPayload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}
	resp, err := g.client.Token.Fetch(customerID, tokenID, nil, nil)
	if err != nil {
		return classify(err)
	}
	if status, _ := resp["status"].(string); status != "" && status != "confirmed" && status != "active" {
		return ierr.NewErrorf("razorpay token is %s", status).
			WithHint("The saved mandate can no longer be charged").
			WithReportableDetails(map[string]interface{}{"token_id": token.ID}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (g *Gateway) ReversePayment(ctx context.Context, req *payment.ReversalRequest) error {
	if err := ctx.Err(); err != nil {
		return classify(err)
	}
	amount := int(types.ToSmallestUnit(req.Amount, req.Currency))
	_, err := g.client.Payment.Refund(req.TransactionID, amount, map[string]interface{}{
		"notes": map[string]interface{}{"reason": req.Reason},
	}, nil)
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps SDK errors onto the gateway error contract. The SDK reports
// provider rejections as plain errors whose message starts with the error code.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return ierr.WithError(err).WithHint("Razorpay did not answer in time").Mark(ierr.ErrTimeout)
	case errors.As(err, &netErr):
		return ierr.WithError(err).WithHint("Unable to reach Razorpay").Mark(ierr.ErrSystem)
	case strings.Contains(err.Error(), "BAD_REQUEST"):
		return ierr.WithError(err).WithHint("Razorpay rejected the request").Mark(ierr.ErrHTTPClient)
	default:
		return ierr.WithError(err).WithHint("Razorpay request failed").Mark(ierr.ErrSystem)
	}
}
