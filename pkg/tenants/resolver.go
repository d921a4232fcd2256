// pkg/tenants/resolver.go
package tenants

import (
	"context"
	"net"
	"strings"

	"edgegate/pkg/faults"
)

// Resolver maps an inbound host and path to a tenant context. Tiers are
// tried in order and the first match wins:
//
//  1. exact custom-domain match
//  2. dev-port match for local hosts, then subdomain label match
//  3. path prefix /client/{tenant}/...
//  4. configured default tenant
//
// A path-based match also yields the downstream path with the prefix
// stripped exactly once; every other tier returns the path unchanged.
type Resolver struct {
	provider        Provider
	defaultTenantID string
}

func NewResolver(p Provider, defaultTenantID string) *Resolver {
	return &Resolver{provider: p, defaultTenantID: defaultTenantID}
}

const clientPrefix = "/client/"

// Resolve returns the tenant context and the effective downstream path, or
// TenantNotResolved when no tier matches. It never invents a blank tenant.
func (r *Resolver) Resolve(ctx context.Context, host, path string) (Resolved, string, error) {
	hostname, port := splitHostPort(host)

	if t, err := r.provider.TenantByDomain(ctx, hostname); err == nil {
		return Resolved{Tenant: t, Routing: RoutingCustomDomain}, path, nil
	}

	if isLocalHost(hostname) && port != "" {
		if t, err := r.provider.TenantByDevPort(ctx, port); err == nil {
			return Resolved{Tenant: t, Routing: RoutingSubdomain}, path, nil
		}
	}
	if label, ok := subdomainLabel(hostname); ok {
		if t, err := r.provider.TenantBySubdomain(ctx, label); err == nil {
			return Resolved{Tenant: t, Routing: RoutingSubdomain}, path, nil
		}
	}

	if ident, rest, ok := splitClientPath(path); ok {
		if t, err := r.lookupIdent(ctx, ident); err == nil {
			return Resolved{Tenant: t, Routing: RoutingPathBased}, rest, nil
		}
	}

	if r.defaultTenantID != "" {
		if t, err := r.lookupIdent(ctx, r.defaultTenantID); err == nil {
			return Resolved{Tenant: t, Routing: RoutingDefault}, path, nil
		}
	}

	return Resolved{}, path, faults.Newf(faults.TenantNotResolved, "no tenant for host %q", host)
}

// lookupIdent tries slug first, then id, so both work in /client/ prefixes
// and DEFAULT_TENANT_ID.
func (r *Resolver) lookupIdent(ctx context.Context, ident string) (Tenant, error) {
	if t, err := r.provider.TenantBySlug(ctx, ident); err == nil {
		return t, nil
	}
	return r.provider.TenantByID(ctx, ident)
}

func splitHostPort(host string) (string, string) {
	if h, p, err := net.SplitHostPort(host); err == nil {
		return strings.ToLower(h), p
	}
	return strings.ToLower(host), ""
}

func isLocalHost(hostname string) bool {
	switch hostname {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0", "host.docker.internal":
		return true
	}
	return false
}

// subdomainLabel extracts the first DNS label when the host looks like a
// subdomain: three or more labels, or anything under .localhost. Apex
// domains never reach the subdomain table this way.
func subdomainLabel(hostname string) (string, bool) {
	if net.ParseIP(hostname) != nil {
		return "", false
	}
	labels := strings.Split(hostname, ".")
	if len(labels) >= 3 {
		return labels[0], true
	}
	if len(labels) == 2 && labels[1] == "localhost" {
		return labels[0], true
	}
	return "", false
}

// splitClientPath parses /client/{ident}/rest, returning the identifier and
// the remainder with the prefix stripped exactly once.
func splitClientPath(path string) (ident, rest string, ok bool) {
	if !strings.HasPrefix(path, clientPrefix) {
		return "", "", false
	}
	trimmed := path[len(clientPrefix):]
	if trimmed == "" {
		return "", "", false
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		ident, rest = trimmed[:i], trimmed[i:]
	} else {
		ident, rest = trimmed, "/"
	}
	if ident == "" {
		return "", "", false
	}
	return ident, rest, true
}
