package tenants

import (
	"edgegate/pkg/credentials"
)

// Tenant represents a logical customer / brand space.
type Tenant struct {
	ID        string   // stable identifier, slug-like for seeded tenants
	Slug      string   // short name (coreldove)
	Name      string   // display name
	Domains   []string // exact custom domains (thrillring.com)
	Subdomain string   // label under the platform base domain
	DevPorts  []string // local ports owned by this tenant in dev ("3001")
	Features  []string
	BaseURL   string // canonical origin used when building absolute redirects

	// CredentialStrategy is the tenant's credential policy. Empty means
	// PLATFORM_MANAGED.
	CredentialStrategy credentials.Strategy
}

// Strategy returns the tenant's credential strategy with the default applied.
func (t Tenant) Strategy() credentials.Strategy {
	s, _ := credentials.ParseStrategy(string(t.CredentialStrategy))
	return s
}

// RoutingType is the mechanism by which a request was mapped to a tenant.
type RoutingType string

const (
	RoutingCustomDomain RoutingType = "custom_domain"
	RoutingSubdomain    RoutingType = "subdomain"
	RoutingPathBased    RoutingType = "path_based"
	RoutingDefault      RoutingType = "default"
)

// Resolved is the per-request tenant context. It is created once by the
// resolver and immutable for the request's lifetime.
type Resolved struct {
	Tenant  Tenant
	Routing RoutingType
}
