package types

import "context"

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderTenantID      = "X-Tenant-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"

	ContentTypeJSON = "application/json"
)

// OutboundHeaders builds the headers sent to internal collaborators. Empty
// values are left out.
func OutboundHeaders(ctx context.Context, apiKey string) map[string]string {
	headers := map[string]string{}
	if apiKey != "" {
		headers[HeaderAuthorization] = "Bearer " + apiKey
	}
	if id := GetRequestID(ctx); id != "" {
		headers[HeaderRequestID] = id
	}
	if id := GetTenantID(ctx); id != "" {
		headers[HeaderTenantID] = id
	}
	return headers
}
