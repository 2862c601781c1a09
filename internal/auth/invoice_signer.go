package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/worksphere/billing/internal/domain/invoice"
	ierr "github.com/worksphere/billing/internal/errors"
)

// SignatureFormatJWS is recorded on invoices signed by InvoiceSigner
const SignatureFormatJWS = "JWS-HS256"

// InvoiceSigner signs the fiscal fields of an invoice as a compact JWS
type InvoiceSigner struct {
	secret []byte
}

var _ invoice.Signer = (*InvoiceSigner)(nil)

func NewInvoiceSigner(secret string) *InvoiceSigner {
	return &InvoiceSigner{secret: []byte(secret)}
}

func (s *InvoiceSigner) Sign(_ context.Context, inv *invoice.Invoice) (*invoice.SignatureResult, error) {
	if len(s.secret) == 0 {
		return nil, ierr.NewError("invoice signing key is not configured").
			WithHint("Configure payment.token_signing_secret").
			Mark(ierr.ErrInternal)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":       inv.ID,
		"tid":       inv.TenantID,
		"cycle":     inv.BillingCycleID,
		"currency":  inv.Currency,
		"base":      inv.BaseAmount.StringFixed(2),
		"prorated":  inv.ProratedAmount.StringFixed(2),
		"tax":       inv.TaxAmount.StringFixed(2),
		"total":     inv.TotalAmount.StringFixed(2),
		"issued_at": inv.IssuedAt.Unix(),
		"iat":       now.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to sign invoice").
			Mark(ierr.ErrInternal)
	}
	return &invoice.SignatureResult{Signature: signed, Format: SignatureFormatJWS, SignedAt: now}, nil
}

// VerifyInvoice reports whether sig still matches the invoice totals
func (s *InvoiceSigner) VerifyInvoice(inv *invoice.Invoice) bool {
	parsed, err := jwt.Parse(inv.Signature, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").Mark(ierr.ErrPermissionDenied)
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	return claims["sub"] == inv.ID && claims["total"] == inv.TotalAmount.StringFixed(2)
}
