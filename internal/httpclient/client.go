// Package httpclient is the JSON over HTTP transport shared by the outbound
// integrations. Requests are retried by go-retryablehttp.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Client sends a request and returns the response of any status. Transport
// failures are marked ErrTimeout or ErrSystem.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type Options struct {
	Timeout  time.Duration
	RetryMax int
}

type retryableClient struct {
	client *retryablehttp.Client
	logger *logger.Logger
}

func NewClient(opts Options, log *logger.Logger) Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = log.GetRetryableHTTPLogger()
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	// the caller classifies the final status
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &retryableClient{client: rc, logger: log}
}

func (c *retryableClient) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build request").
			Mark(ierr.ErrInternal)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warnw("outbound request failed", "method", req.Method, "url", req.URL, "error", err)
		return nil, TransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read response body").
			Mark(ierr.ErrSystem)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: headers, Body: respBody}, nil
}

// TransportError classifies a failure to get any response
func TransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ierr.WithError(err).
			WithHint("Remote service did not answer in time").
			Mark(ierr.ErrTimeout)
	}
	return ierr.WithError(err).
		WithHint("Unable to reach remote service").
		Mark(ierr.ErrSystem)
}

// StatusError classifies a non-2xx response
func StatusError(service string, resp *Response) error {
	b := ierr.NewErrorf("%s returned HTTP %d", service, resp.StatusCode).
		WithHintf("%s rejected the request", service).
		WithReportableDetails(map[string]interface{}{
			"status_code": resp.StatusCode,
			"body":        truncate(string(resp.Body), 512),
		})
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return b.Mark(ierr.ErrNotFound)
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return b.Mark(ierr.ErrSystem)
	default:
		return b.Mark(ierr.ErrHTTPClient)
	}
}

// DoJSON marshals in, sends it and decodes a 2xx body into out
func DoJSON(ctx context.Context, c Client, service, method, url string, headers map[string]string, in, out interface{}) error {
	req := &Request{Method: method, URL: url, Headers: map[string]string{types.HeaderAccept: types.ContentTypeJSON}}
	for k, v := range headers {
		req.Headers[k] = v
	}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return ierr.WithError(err).
				WithHintf("Invalid %s request", service).
				Mark(ierr.ErrValidation)
		}
		req.Body = b
		req.Headers[types.HeaderContentType] = types.ContentTypeJSON
	}

	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError(service, resp)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to parse %s response", service).
			Mark(ierr.ErrSystem)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
