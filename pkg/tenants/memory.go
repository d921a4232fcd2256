// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"edgegate/pkg/credentials"
)

type memProvider struct {
	log         *zap.SugaredLogger
	mu          sync.RWMutex
	byDomain    map[string]Tenant
	bySubdomain map[string]Tenant
	byPort      map[string]Tenant
	bySlug      map[string]Tenant
	byID        map[string]Tenant
}

type seedEntry struct {
	ID                 string   `json:"id"`
	Slug               string   `json:"slug"`
	Name               string   `json:"name"`
	Domains            []string `json:"domains"`
	Subdomain          string   `json:"subdomain"`
	DevPorts           []string `json:"dev_ports"`
	Features           []string `json:"features"`
	BaseURL            string   `json:"base_url"`
	CredentialStrategy string   `json:"credential_strategy"`
}

func (e seedEntry) tenant() Tenant {
	strategy, _ := credentials.ParseStrategy(e.CredentialStrategy)
	slug := e.Slug
	if slug == "" {
		slug = e.ID
	}
	return Tenant{
		ID:                 e.ID,
		Slug:               slug,
		Name:               e.Name,
		Domains:            e.Domains,
		Subdomain:          e.Subdomain,
		DevPorts:           e.DevPorts,
		Features:           e.Features,
		BaseURL:            e.BaseURL,
		CredentialStrategy: strategy,
	}
}

// NewMemoryProviderFromEnv builds an in-memory provider from TENANT_SEED_JSON,
// falling back to the three local development tenants when no seed is set.
func NewMemoryProviderFromEnv(log *zap.SugaredLogger) Provider {
	p := &memProvider{
		log:         log,
		byDomain:    map[string]Tenant{},
		bySubdomain: map[string]Tenant{},
		byPort:      map[string]Tenant{},
		bySlug:      map[string]Tenant{},
		byID:        map[string]Tenant{},
	}
	seed := os.Getenv("TENANT_SEED_JSON")
	if seed != "" {
		var entries []seedEntry
		if err := json.Unmarshal([]byte(seed), &entries); err != nil {
			log.Warnw("tenant seed parse failed", "err", err)
		}
		for _, e := range entries {
			p.add(e.tenant())
		}
		return p
	}
	for _, t := range devTenants() {
		p.add(t)
	}
	return p
}

// NewMemoryProvider builds a provider over a fixed tenant set, mainly for
// tests.
func NewMemoryProvider(log *zap.SugaredLogger, ts ...Tenant) Provider {
	p := &memProvider{
		log:         log,
		byDomain:    map[string]Tenant{},
		bySubdomain: map[string]Tenant{},
		byPort:      map[string]Tenant{},
		bySlug:      map[string]Tenant{},
		byID:        map[string]Tenant{},
	}
	for _, t := range ts {
		p.add(t)
	}
	return p
}

// devTenants are the localhost defaults: one tenant per frontend port.
func devTenants() []Tenant {
	return []Tenant{
		{
			ID:        "bizoholic",
			Slug:      "bizoholic",
			Name:      "Bizoholic",
			Subdomain: "bizoholic",
			DevPorts:  []string{"3000"},
			Features:  []string{"marketing", "ai-agents"},
			BaseURL:   "http://localhost:3000",
		},
		{
			ID:                 "coreldove",
			Slug:               "coreldove",
			Name:               "CorelDove",
			Subdomain:          "coreldove",
			DevPorts:           []string{"3001"},
			Features:           []string{"ecommerce"},
			BaseURL:            "http://localhost:3001",
			CredentialStrategy: credentials.StrategyHybrid,
		},
		{
			ID:                 "thrillring",
			Slug:               "thrillring",
			Name:               "ThrillRing",
			Domains:            []string{"thrillring.com"},
			DevPorts:           []string{"3002"},
			Features:           []string{"gaming"},
			BaseURL:            "https://thrillring.com",
			CredentialStrategy: credentials.StrategyBYOK,
		},
	}
}

func (m *memProvider) add(t Tenant) {
	for _, d := range t.Domains {
		m.byDomain[d] = t
	}
	if t.Subdomain != "" {
		m.bySubdomain[t.Subdomain] = t
	}
	for _, port := range t.DevPorts {
		m.byPort[port] = t
	}
	if t.Slug != "" {
		m.bySlug[t.Slug] = t
	}
	if t.ID != "" {
		m.byID[t.ID] = t
	}
}

func (m *memProvider) lookup(index map[string]Tenant, key string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := index[key]; ok {
		return t, nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memProvider) TenantByDomain(ctx context.Context, domain string) (Tenant, error) {
	return m.lookup(m.byDomain, domain)
}

func (m *memProvider) TenantBySubdomain(ctx context.Context, label string) (Tenant, error) {
	return m.lookup(m.bySubdomain, label)
}

func (m *memProvider) TenantByDevPort(ctx context.Context, port string) (Tenant, error) {
	return m.lookup(m.byPort, port)
}

func (m *memProvider) TenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	return m.lookup(m.bySlug, slug)
}

func (m *memProvider) TenantByID(ctx context.Context, id string) (Tenant, error) {
	return m.lookup(m.byID, id)
}

// SetStrategy updates the tenant's credential strategy across all indexes.
func (m *memProvider) SetStrategy(ctx context.Context, tenantID string, s credentials.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[tenantID]
	if !ok {
		return ErrNotFound
	}
	t.CredentialStrategy = s
	m.add(t)
	return nil
}
