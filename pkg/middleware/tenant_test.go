// pkg/middleware/tenant_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edgegate/pkg/tenants"
)

func tenantMW(t *testing.T, defaultID string) func(http.Handler) http.Handler {
	t.Helper()
	prov := tenants.NewMemoryProvider(zap.NewNop().Sugar(),
		tenants.Tenant{ID: "coreldove", Slug: "coreldove", Name: "CorelDove", Subdomain: "coreldove", DevPorts: []string{"3001"}, Features: []string{"ecommerce"}},
		tenants.Tenant{ID: "thrillring", Slug: "thrillring", Name: "ThrillRing", Domains: []string{"thrillring.com"}},
	)
	return WithTenant(tenants.NewResolver(prov, defaultID))
}

func TestWithTenantRewritesPathPreservingQuery(t *testing.T) {
	var gotPath, gotQuery string
	var gotCtx tenants.Resolved
	h := tenantMW(t, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		gotCtx, _ = ResolvedFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://edge.internal.example/client/coreldove/products?x=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/products", gotPath)
	assert.Equal(t, "x=1", gotQuery)
	assert.Equal(t, "coreldove", gotCtx.Tenant.ID)
	assert.Equal(t, tenants.RoutingPathBased, gotCtx.Routing)
	assert.Equal(t, "coreldove", rec.Header().Get("Tenant-Id"))
	assert.Equal(t, "CorelDove", rec.Header().Get("Tenant-Name"))
	assert.Equal(t, "path_based", rec.Header().Get("Routing-Type"))
	assert.Equal(t, "ecommerce", rec.Header().Get("Tenant-Features"))
}

func TestWithTenantCustomDomain(t *testing.T) {
	h := tenantMW(t, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "http://thrillring.com/anything", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thrillring", rec.Header().Get("Tenant-Id"))
	assert.Equal(t, "custom_domain", rec.Header().Get("Routing-Type"))
}

func TestWithTenantUnknownHostIs404Problem(t *testing.T) {
	called := false
	h := tenantMW(t, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodGet, "http://nobody.example/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called, "handler must not run without a tenant")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestWithTenantBypassesHealthAndMetrics(t *testing.T) {
	h := tenantMW(t, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, path := range []string{"/healthz", "/metrics", "/.well-known/edgegate.json"} {
		req := httptest.NewRequest(http.MethodGet, "http://nobody.example"+path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
	}
}
