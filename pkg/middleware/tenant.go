// pkg/middleware/tenant.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"edgegate/pkg/metrics"
	"edgegate/pkg/problems"
	"edgegate/pkg/tenants"
)

type ctxTenantKey struct{}

// WithTenant resolves the tenant context for every request and injects it
// into the request context and headers. Health, metrics and discovery
// endpoints pass through without a tenant. Resolution failures surface as a
// not-found problem; requests never proceed with a blank tenant.
func WithTenant(resolver *tenants.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/healthz", r.URL.Path == "/metrics", strings.HasPrefix(r.URL.Path, "/.well-known/"):
				next.ServeHTTP(w, r)
				return
			}
			res, path, err := resolver.Resolve(r.Context(), r.Host, r.URL.Path)
			if err != nil {
				metrics.TenantResolutionsTotal.WithLabelValues("none").Inc()
				problems.Render(w, err)
				return
			}
			metrics.TenantResolutionsTotal.WithLabelValues(string(res.Routing)).Inc()
			// Path-based routing rewrites the path once; the query string is
			// left untouched.
			r.URL.Path = path

			w.Header().Set("Tenant-Id", res.Tenant.ID)
			w.Header().Set("Tenant-Name", res.Tenant.Name)
			w.Header().Set("Routing-Type", string(res.Routing))
			if len(res.Tenant.Features) > 0 {
				w.Header().Set("Tenant-Features", strings.Join(res.Tenant.Features, ","))
			}
			r.Header.Set("Tenant-Id", res.Tenant.ID)
			r.Header.Set("Routing-Type", string(res.Routing))

			ctx := context.WithValue(r.Context(), ctxTenantKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolvedFrom returns the tenant context injected by WithTenant.
func ResolvedFrom(ctx context.Context) (tenants.Resolved, bool) {
	if v := ctx.Value(ctxTenantKey{}); v != nil {
		return v.(tenants.Resolved), true
	}
	return tenants.Resolved{}, false
}

// TenantFrom is a shorthand for the tenant of the current request.
func TenantFrom(ctx context.Context) tenants.Tenant {
	res, _ := ResolvedFrom(ctx)
	return res.Tenant
}
