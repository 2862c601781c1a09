// Package metrics reads tenant usage from the metrics agent
package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/usage"
	"github.com/worksphere/billing/internal/httpclient"
	"github.com/worksphere/billing/internal/types"
)

const serviceName = "metrics agent"

type usageResponse struct {
	TenantID string            `json:"tenant_id"`
	Metrics  []usage.RawMetric `json:"metrics"`
}

// Client implements usage.Source against GET /v1/tenants/{id}/usage
type Client struct {
	baseURL string
	apiKey  string
	http    httpclient.Client
}

func NewClient(cfg config.HTTPClientConfig, client httpclient.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    client,
	}
}

func (c *Client) GetMetrics(ctx context.Context, tenantID string, from, to time.Time) ([]usage.RawMetric, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	endpoint := c.baseURL + "/v1/tenants/" + url.PathEscape(tenantID) + "/usage?" + q.Encode()

	headers := types.OutboundHeaders(ctx, c.apiKey)

	var resp usageResponse
	if err := httpclient.DoJSON(ctx, c.http, serviceName, http.MethodGet, endpoint, headers, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}
