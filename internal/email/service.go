package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/worksphere/billing/internal/domain/invoice"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
)

var invoiceTemplate = template.Must(template.New("invoice-email.html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <title>Invoice {{.ID}}</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello,</p>
    <p>Your invoice for the billing period ending {{.DueAt.Format "2006-01-02"}} has been paid.</p>
    <table cellpadding="4">
        <tr><td>Invoice</td><td>{{.ID}}</td></tr>
        <tr><td>Base</td><td>{{.BaseAmount.StringFixed 2}} {{.Currency}}</td></tr>
        <tr><td>Prorated</td><td>{{.ProratedAmount.StringFixed 2}} {{.Currency}}</td></tr>
        <tr><td>Tax</td><td>{{.TaxAmount.StringFixed 2}} {{.Currency}}</td></tr>
        <tr><td><strong>Total</strong></td><td><strong>{{.TotalAmount.StringFixed 2}} {{.Currency}}</strong></td></tr>
    </table>
</body>
</html>`))

// InvoiceMailer renders invoices and hands them to a Sender. It implements
// notification.InvoiceMailer.
type InvoiceMailer struct {
	sender Sender
	logger *logger.Logger
}

func NewInvoiceMailer(sender Sender, log *logger.Logger) *InvoiceMailer {
	return &InvoiceMailer{sender: sender, logger: log}
}

func (m *InvoiceMailer) SendInvoice(ctx context.Context, to string, inv *invoice.Invoice) error {
	if !m.sender.IsEnabled() {
		m.logger.Debugw("email client is disabled, skipping invoice email",
			"invoice_id", inv.ID,
			"tenant_id", inv.TenantID,
		)
		return nil
	}
	if to == "" {
		return ierr.NewError("missing recipient").
			WithHint("Tenant has no billing email").
			WithReportableDetails(map[string]interface{}{"tenant_id": inv.TenantID}).
			Mark(ierr.ErrValidation)
	}

	var body bytes.Buffer
	if err := invoiceTemplate.Execute(&body, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to render invoice email").
			Mark(ierr.ErrInternal)
	}

	messageID, err := m.sender.Send(ctx, &Message{
		From:    m.sender.FromAddress(),
		To:      to,
		Subject: fmt.Sprintf("Invoice %s", inv.ID),
		HTML:    body.String(),
		Text:    fmt.Sprintf("Invoice %s: %s %s", inv.ID, inv.TotalAmount.StringFixed(2), inv.Currency),
	})
	if err != nil {
		m.logger.Errorw("failed to send invoice email",
			"error", err,
			"invoice_id", inv.ID,
			"tenant_id", inv.TenantID,
		)
		return err
	}

	m.logger.Infow("invoice email sent",
		"message_id", messageID,
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
	)
	return nil
}
