// internal/health/prober_http_test.go
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edgegate/internal/upstream"
	"edgegate/pkg/catalog"
	"edgegate/pkg/config"
	"edgegate/pkg/credentials"
)

func defaultProvider() catalog.Provider {
	return catalog.Provider{
		ID:          "openai",
		ValidExpr:   "valid",
		QuotaExpr:   "quota_remaining",
		ExpiresExpr: "expires_at",
	}
}

func newProber(t *testing.T, url string, timeout time.Duration) *HTTPProber {
	t.Helper()
	mgr := upstream.NewManager(config.Config{UpstreamTimeout: timeout})
	t.Cleanup(mgr.Close)
	p := NewHTTPProber(url, mgr, zap.NewNop().Sugar())
	p.backoff = time.Millisecond
	return p
}

func TestProbeReadsFlatPayload(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rec-1", req.RecordID)
		assert.Equal(t, "openai", req.PlatformID)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":           true,
			"quota_remaining": 4200,
			"expires_at":      expires.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, time.Second)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-1", PlatformID: "openai", Source: credentials.SourceTenant}, defaultProvider())

	assert.True(t, res.OK)
	assert.Equal(t, int64(4200), res.QuotaRemaining)
	assert.Equal(t, expires, res.ExpiresAt)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestProbeUsesCatalogExpressions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "active",
			"limits": map[string]any{"remaining": 777},
		})
	}))
	defer srv.Close()

	prov := catalog.Provider{
		ID:          "hubspot",
		ValidExpr:   "status == 'active'",
		QuotaExpr:   "limits.remaining",
		ExpiresExpr: "expires_at",
	}
	p := newProber(t, srv.URL, time.Second)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-2", PlatformID: "hubspot"}, prov)

	assert.True(t, res.OK)
	assert.Equal(t, int64(777), res.QuotaRemaining)
	assert.True(t, res.ExpiresAt.IsZero())
}

func TestProbeInvalidCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, time.Second)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-3", PlatformID: "openai"}, defaultProvider())

	assert.False(t, res.OK)
	assert.Equal(t, "invalid credential", res.Reason)
}

func TestProbeProviderReportsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": false, "quota_remaining": 9000})
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, time.Second)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-4", PlatformID: "openai"}, defaultProvider())

	assert.False(t, res.OK)
	assert.Equal(t, int64(0), res.QuotaRemaining, "quota from an invalid payload is not trusted")
}

func TestProbeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, time.Second)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-5", PlatformID: "openai"}, defaultProvider())

	assert.False(t, res.OK)
	assert.Equal(t, "verify status 502", res.Reason)
}

func TestProbeRetriesTimeoutOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "quota_remaining": 10})
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, 100*time.Millisecond)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-6", PlatformID: "openai"}, defaultProvider())

	assert.True(t, res.OK, "the idempotent read is retried once after a timeout")
	assert.Equal(t, int32(2), hits.Load())
}

func TestProbeDoesNotRetryTwice(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	p := newProber(t, srv.URL, 50*time.Millisecond)
	res := p.Probe(context.Background(), credentials.Record{ID: "rec-7", PlatformID: "openai"}, defaultProvider())

	assert.False(t, res.OK)
	assert.Equal(t, "verify timeout", res.Reason)
	assert.Equal(t, int32(2), hits.Load(), "one retry, never more")
}
