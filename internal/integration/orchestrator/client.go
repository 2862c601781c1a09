// Package orchestrator calls the tenant orchestrator that provisions tenant
// resources.
package orchestrator

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/tenant"
	"github.com/worksphere/billing/internal/httpclient"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

const serviceName = "tenant orchestrator"

type actionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Client implements tenant.Orchestrator
type Client struct {
	baseURL string
	apiKey  string
	http    httpclient.Client
	logger  *logger.Logger
}

var _ tenant.Orchestrator = (*Client)(nil)

func NewClient(cfg config.HTTPClientConfig, client httpclient.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    client,
		logger:  log,
	}
}

func (c *Client) SuspendTenant(ctx context.Context, tenantID, reason string) error {
	return c.post(ctx, c.tenantURL(tenantID, "suspend"), &actionRequest{Reason: reason})
}

func (c *Client) CancelTenant(ctx context.Context, tenantID, reason string) error {
	return c.post(ctx, c.tenantURL(tenantID, "deprovision"), &actionRequest{Reason: reason})
}

func (c *Client) ReactivateTenant(ctx context.Context, tenantID string) error {
	return c.post(ctx, c.tenantURL(tenantID, "reactivate"), &actionRequest{})
}

func (c *Client) NotifyPayment(ctx context.Context, notice *tenant.PaymentNotice) error {
	return c.post(ctx, c.tenantURL(notice.TenantID, "payments"), notice)
}

func (c *Client) tenantURL(tenantID, action string) string {
	return c.baseURL + "/v1/tenants/" + url.PathEscape(tenantID) + "/" + action
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) error {
	headers := types.OutboundHeaders(ctx, c.apiKey)
	if err := httpclient.DoJSON(ctx, c.http, serviceName, http.MethodPost, endpoint, headers, body, nil); err != nil {
		c.logger.Warnw("tenant orchestrator call failed", "endpoint", endpoint, "error", err)
		return err
	}
	return nil
}
