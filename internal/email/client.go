package email

import (
	"context"

	"github.com/resend/resend-go/v2"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
)

// Sender is the transport the invoice mailer sends through
type Sender interface {
	IsEnabled() bool
	FromAddress() string
	Send(ctx context.Context, msg *Message) (string, error)
}

// Message is a rendered email
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Client sends email through Resend
type Client struct {
	client *resend.Client
	cfg    config.EmailConfig
}

func NewClient(cfg config.EmailConfig) *Client {
	c := &Client{cfg: cfg}
	if cfg.Enabled && cfg.ResendAPIKey != "" {
		c.client = resend.NewClient(cfg.ResendAPIKey)
	}
	return c
}

func (c *Client) IsEnabled() bool {
	return c.client != nil
}

func (c *Client) FromAddress() string {
	return c.cfg.FromAddress
}

func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	if !c.IsEnabled() {
		return "", ierr.NewError("email client is disabled").
			WithHint("Configure email.enabled and email.resend_api_key").
			Mark(ierr.ErrInvalidOperation)
	}

	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.ReplyTo != "" {
		req.ReplyTo = msg.ReplyTo
	} else if c.cfg.ReplyTo != "" {
		req.ReplyTo = c.cfg.ReplyTo
	}

	resp, err := c.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to send email").
			WithReportableDetails(map[string]interface{}{"to": msg.To, "subject": msg.Subject}).
			Mark(ierr.ErrHTTPClient)
	}
	return resp.Id, nil
}
