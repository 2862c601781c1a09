package moyasar

import (
	"context"
	"strings"

	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// Gateway adapts Client to payment.Gateway
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderMoyasar
}

func (g *Gateway) ProcessPayment(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	p, err := g.client.ChargeWithToken(ctx,
		req.Token.EncryptedPayload,
		types.ToSmallestUnit(req.Amount, currency),
		currency,
		req.Description,
		map[string]string{
			"tenant_id":  req.TenantID,
			"invoice_id": req.InvoiceID,
			"payment_id": req.PaymentID,
		},
		req.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case PaymentStatusPaid, PaymentStatusCaptured:
		return &payment.ChargeResponse{TransactionID: p.ID, Status: types.PaymentStatusSuccess}, nil
	case PaymentStatusFailed:
		msg := ""
		if p.Source != nil {
			msg = p.Source.Message
		}
		return &payment.ChargeResponse{
			TransactionID: p.ID,
			Status:        types.PaymentStatusFailed,
			FailureReason: types.PaymentFailureDeclined,
			Message:       msg,
		}, nil
	default:
		// initiated means 3DS is pending, which a recurring charge cannot complete
		return &payment.ChargeResponse{
			TransactionID: p.ID,
			Status:        types.PaymentStatusFailed,
			FailureReason: types.PaymentFailureDeclined,
			Message:       "payment requires customer action: " + string(p.Status),
		}, nil
	}
}

func (g *Gateway) ValidateToken(ctx context.Context, token *payment.Token) error {
	t, err := g.client.GetToken(ctx, token.EncryptedPayload)
	if err != nil {
		return err
	}
	if t.Status == TokenStatusInactive {
		return ierr.NewError("moyasar token is inactive").
			WithHint("The saved card can no longer be charged").
			WithReportableDetails(map[string]interface{}{"token_id": token.ID}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (g *Gateway) ReversePayment(ctx context.Context, req *payment.ReversalRequest) error {
	_, err := g.client.RefundPayment(ctx, req.TransactionID, types.ToSmallestUnit(req.Amount, req.Currency))
	return err
}
