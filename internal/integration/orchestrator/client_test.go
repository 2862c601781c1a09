package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/tenant"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/httpclient"
	"github.com/worksphere/billing/internal/testutil"
)

func newTestClient(url string) *Client {
	log := testutil.NewTestLogger()
	return NewClient(config.HTTPClientConfig{BaseURL: url},
		httpclient.NewClient(httpclient.Options{Timeout: time.Second}, log), log)
}

func TestClient_Paths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.SuspendTenant(ctx, "t1", "non-payment"))
	require.NoError(t, c.CancelTenant(ctx, "t1", "non-payment"))
	require.NoError(t, c.ReactivateTenant(ctx, "t1"))

	assert.Equal(t, []string{
		"/v1/tenants/t1/suspend",
		"/v1/tenants/t1/deprovision",
		"/v1/tenants/t1/reactivate",
	}, paths)
}

func TestClient_NotifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var notice tenant.PaymentNotice
		require.NoError(t, json.NewDecoder(r.Body).Decode(&notice))
		assert.Equal(t, "tx_1", notice.TransactionID)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).NotifyPayment(context.Background(), &tenant.PaymentNotice{TenantID: "t1", TransactionID: "tx_1"})
	assert.True(t, ierr.IsSystem(err))
}
