package moyasar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
)

// Client talks to the Moyasar REST API with basic auth on the secret key
type Client struct {
	baseURL    string
	secretKey  string
	logger     *logger.Logger
	httpClient *retryablehttp.Client
}

func NewClient(cfg config.MoyasarConfig, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, ierr.NewError("missing Moyasar secret key").
			WithHint("Configure payment.moyasar.secret_key").
			Mark(ierr.ErrValidation)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = log.GetRetryableHTTPLogger()

	return &Client{
		baseURL:    baseURL,
		secretKey:  cfg.SecretKey,
		logger:     log,
		httpClient: rc,
	}, nil
}

func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", req, &p); err != nil {
		return nil, err
	}
	c.logger.Infow("created moyasar payment", "payment_id", p.ID, "status", p.Status, "amount", p.Amount)
	return &p, nil
}

// ChargeWithToken charges a saved card token. givenID is the idempotency key.
func (c *Client) ChargeWithToken(ctx context.Context, tokenID string, amount int64, currency, description string, metadata map[string]string, givenID string) (*Payment, error) {
	return c.CreatePayment(ctx, &CreatePaymentRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
		GivenID:     givenID,
		Source: &PaymentSource{
			Type:  PaymentSourceTypeToken,
			Token: tokenID,
		},
	})
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RefundPayment refunds amount halalah; zero refunds in full
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount int64) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", &RefundRequest{Amount: amount}, &p); err != nil {
		return nil, err
	}
	c.logger.Infow("refunded moyasar payment", "payment_id", paymentID, "refunded", p.RefundedAmount)
	return &p, nil
}

func (c *Client) GetToken(ctx context.Context, tokenID string) (*Token, error) {
	var t Token
	if err := c.do(ctx, http.MethodGet, "/tokens/"+tokenID, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Invalid Moyasar request").
				Mark(ierr.ErrValidation)
		}
		reader = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build Moyasar request").
			Mark(ierr.ErrInternal)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorw("moyasar request failed", "method", method, "path", path, "error", err)
		return transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read Moyasar response").
			Mark(ierr.ErrSystem)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to parse Moyasar response").
				Mark(ierr.ErrSystem)
		}
	}
	return nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ierr.WithError(err).
			WithHint("Moyasar did not answer in time").
			Mark(ierr.ErrTimeout)
	}
	return ierr.WithError(err).
		WithHint("Unable to connect to Moyasar API").
		Mark(ierr.ErrSystem)
}

func statusError(status int, body []byte) error {
	var errResp ErrorResponse
	msg := fmt.Sprintf("moyasar returned HTTP %d", status)
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		msg = errResp.Message
	}

	b := ierr.NewError(msg).
		WithHint("Moyasar rejected the request").
		WithReportableDetails(map[string]interface{}{
			"status_code": status,
			"type":        errResp.Type,
			"errors":      errResp.Errors,
		})

	switch {
	case status == http.StatusNotFound:
		return b.Mark(ierr.ErrNotFound)
	case status >= 500:
		return b.Mark(ierr.ErrSystem)
	default:
		return b.Mark(ierr.ErrHTTPClient)
	}
}
