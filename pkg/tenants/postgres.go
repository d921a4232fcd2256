// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"edgegate/pkg/credentials"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id text PRIMARY KEY,
  slug text UNIQUE,
  name text NOT NULL DEFAULT '',
  domains text[] NOT NULL DEFAULT '{}',
  subdomain text NOT NULL DEFAULT '',
  dev_ports text[] NOT NULL DEFAULT '{}',
  features text[] NOT NULL DEFAULT '{}',
  base_url text NOT NULL DEFAULT '',
  credential_strategy text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS tenants_domains_idx ON tenants USING gin(domains);
CREATE UNIQUE INDEX IF NOT EXISTS tenants_subdomain_idx ON tenants(subdomain) WHERE subdomain <> '';
`)
	return err
}

// SeedFromEnv ingests initial tenant data (TENANT_SEED_JSON), upserting by
// id so repeated startups converge on the env's view.
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		t := e.tenant()
		_, err := dbPool.Exec(ctx, `INSERT INTO tenants(id,slug,name,domains,subdomain,dev_ports,features,base_url,credential_strategy)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		  ON CONFLICT (id) DO UPDATE SET slug=EXCLUDED.slug,name=EXCLUDED.name,domains=EXCLUDED.domains,subdomain=EXCLUDED.subdomain,dev_ports=EXCLUDED.dev_ports,features=EXCLUDED.features,base_url=EXCLUDED.base_url,credential_strategy=EXCLUDED.credential_strategy,updated_at=NOW()`,
			t.ID, t.Slug, t.Name, t.Domains, t.Subdomain, t.DevPorts, t.Features, t.BaseURL, string(t.CredentialStrategy))
		if err != nil {
			return err
		}
	}
	return nil
}

const tenantCols = `id, slug, name, domains, subdomain, dev_ports, features, base_url, credential_strategy`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	var strategy string
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Domains, &t.Subdomain, &t.DevPorts, &t.Features, &t.BaseURL, &strategy); err != nil {
		return Tenant{}, ErrNotFound
	}
	t.CredentialStrategy, _ = credentials.ParseStrategy(strategy)
	return t, nil
}

func (p *pgProvider) TenantByDomain(ctx context.Context, domain string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE $1 = ANY(domains)`, domain)
	return scanTenant(row)
}

func (p *pgProvider) TenantBySubdomain(ctx context.Context, label string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE subdomain=$1 AND subdomain <> ''`, label)
	return scanTenant(row)
}

func (p *pgProvider) TenantByDevPort(ctx context.Context, port string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE $1 = ANY(dev_ports)`, port)
	return scanTenant(row)
}

func (p *pgProvider) TenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE slug=$1`, slug)
	return scanTenant(row)
}

func (p *pgProvider) TenantByID(ctx context.Context, id string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id)
	return scanTenant(row)
}

// SetStrategy persists a credential strategy change for the tenant.
func (p *pgProvider) SetStrategy(ctx context.Context, tenantID string, s credentials.Strategy) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE tenants SET credential_strategy=$2, updated_at=NOW() WHERE id=$1`, tenantID, string(s))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
