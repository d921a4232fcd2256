// pkg/catalog/catalog.go
package catalog

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"edgegate/pkg/credentials"
)

// FeeSchedule is the pricing shape the cost estimator works over.
type FeeSchedule struct {
	MonthlyBaseFee float64            `json:"monthly_base_fee" yaml:"monthly_base_fee"`
	PerUnitRates   map[string]float64 `json:"per_unit_rates" yaml:"per_unit_rates"`
	IncludedQuota  int64              `json:"included_quota" yaml:"included_quota"`
}

// Provider describes one integration provider: how to start its OAuth flow,
// what it can do, how to read its verify responses, and what it costs under
// each strategy. Client id/secret are env-supplied, never part of the
// catalog itself.
type Provider struct {
	ID           string   `json:"id" yaml:"id"`
	DisplayName  string   `json:"display_name" yaml:"display_name"`
	AuthorizeURL string   `json:"authorize_url" yaml:"authorize_url"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`

	// JMESPath expressions applied to the verify service's response for
	// this provider. Empty fields fall back to the flat default contract.
	ValidExpr   string `json:"valid_expr,omitempty" yaml:"valid_expr,omitempty"`
	QuotaExpr   string `json:"quota_expr,omitempty" yaml:"quota_expr,omitempty"`
	ExpiresExpr string `json:"expires_expr,omitempty" yaml:"expires_expr,omitempty"`

	Fees map[credentials.Strategy]FeeSchedule `json:"fees,omitempty" yaml:"-"`
}

// HasCapability reports whether the provider offers the capability.
func (p Provider) HasCapability(capability string) bool {
	if capability == "" {
		return true
	}
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// FeesFor returns the provider's schedule for a strategy. Unpriced
// strategies come back as a zero schedule.
func (p Provider) FeesFor(s credentials.Strategy) FeeSchedule {
	if f, ok := p.Fees[s]; ok {
		return f
	}
	return FeeSchedule{}
}

// Creds returns the env-supplied OAuth client credentials for the provider,
// e.g. HUBSPOT_CLIENT_ID / HUBSPOT_CLIENT_SECRET.
func (p Provider) Creds() (string, string) {
	key := strings.ToUpper(strings.ReplaceAll(p.ID, "-", "_"))
	return os.Getenv(key + "_CLIENT_ID"), os.Getenv(key + "_CLIENT_SECRET")
}

const (
	defaultValidExpr   = "valid"
	defaultQuotaExpr   = "quota_remaining"
	defaultExpiresExpr = "expires_at"
)

func (p *Provider) applyDefaults() {
	if p.ValidExpr == "" {
		p.ValidExpr = defaultValidExpr
	}
	if p.QuotaExpr == "" {
		p.QuotaExpr = defaultQuotaExpr
	}
	if p.ExpiresExpr == "" {
		p.ExpiresExpr = defaultExpiresExpr
	}
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
}

// Catalog is the provider lookup table. It is built once at startup from
// the builtin set plus an optional overlay directory and read-only after.
type Catalog struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// New builds the catalog, overlaying PROVIDER_REGISTRY_DIR specs on top of
// the builtins. Overlay entries replace builtins with the same id.
func New(log *zap.SugaredLogger, overlayDir string) (*Catalog, error) {
	c := &Catalog{providers: map[string]Provider{}}
	for _, p := range builtins() {
		p.applyDefaults()
		c.providers[p.ID] = p
	}
	overlays, err := loadDir(overlayDir)
	if err != nil {
		return nil, err
	}
	for _, p := range overlays {
		p.applyDefaults()
		c.providers[p.ID] = p
	}
	if len(overlays) > 0 && log != nil {
		log.Infow("provider overlay loaded", "dir", overlayDir, "count", len(overlays))
	}
	return c, nil
}

func (c *Catalog) Get(id string) (Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[id]
	return p, ok
}

func (c *Catalog) List() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
