package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/httpclient"
	"github.com/worksphere/billing/internal/testutil"
)

func TestGetMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tenants/tenant_1/usage", r.URL.Path)
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"tenant_id":"tenant_1","metrics":[{"name":" Storage ","value":"2048","unit":"mb"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.HTTPClientConfig{BaseURL: srv.URL + "/", APIKey: "secret"},
		httpclient.NewClient(httpclient.Options{Timeout: time.Second}, testutil.NewTestLogger()))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := c.GetMetrics(context.Background(), "tenant_1", from, from.AddDate(0, 1, -1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, " Storage ", got[0].Name)
	assert.Equal(t, "2048", got[0].Value.String())
	assert.Equal(t, "mb", got[0].Unit)
}
