// pkg/tenants/provider.go
package tenants

import (
	"context"
	"errors"

	"edgegate/pkg/credentials"
)

// ErrNotFound is returned by all lookups that match no tenant.
var ErrNotFound = errors.New("tenant not found")

// Provider is the lookup surface the resolver works against. Each method
// answers exactly one resolution tier; the precedence between tiers lives in
// the Resolver, not here.
type Provider interface {
	TenantByDomain(ctx context.Context, domain string) (Tenant, error)
	TenantBySubdomain(ctx context.Context, label string) (Tenant, error)
	TenantByDevPort(ctx context.Context, port string) (Tenant, error)
	TenantBySlug(ctx context.Context, slug string) (Tenant, error)
	TenantByID(ctx context.Context, id string) (Tenant, error)
}

// StrategySetter is implemented by providers that can persist a change to a
// tenant's credential strategy.
type StrategySetter interface {
	SetStrategy(ctx context.Context, tenantID string, s credentials.Strategy) error
}
