// internal/linkpolicy/store.go
package linkpolicy

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// memStore is the dev source store.
type memStore struct {
	mu      sync.RWMutex
	sources map[string]string
}

func NewMemoryStore() SourceStore {
	return &memStore{sources: map[string]string{}}
}

func (m *memStore) PolicySource(ctx context.Context, tenantID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[tenantID], nil
}

func (m *memStore) SetPolicy(ctx context.Context, tenantID, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[tenantID] = source
	return nil
}

func (m *memStore) RemovePolicy(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, tenantID)
	return nil
}

// pgStore keeps one enabled policy source per tenant.
type pgStore struct {
	dbPool *pgxpool.Pool
}

func NewPostgresStore(dbPool *pgxpool.Pool) SourceStore {
	return &pgStore{dbPool: dbPool}
}

// EnsureSchema creates the link_policies table. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS link_policies (
  tenant_id text PRIMARY KEY,
  rego_source text NOT NULL DEFAULT '',
  enabled boolean NOT NULL DEFAULT true,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);`)
	return err
}

func (p *pgStore) PolicySource(ctx context.Context, tenantID string) (string, error) {
	var src string
	err := p.dbPool.QueryRow(ctx,
		`SELECT COALESCE(rego_source,'') FROM link_policies WHERE tenant_id=$1 AND enabled`, tenantID,
	).Scan(&src)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row means no policy, which means allow.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return src, nil
}

func (p *pgStore) SetPolicy(ctx context.Context, tenantID, source string) error {
	_, err := p.dbPool.Exec(ctx, `INSERT INTO link_policies(tenant_id, rego_source, enabled)
	  VALUES ($1,$2,true)
	  ON CONFLICT (tenant_id) DO UPDATE SET rego_source=EXCLUDED.rego_source, enabled=true, updated_at=NOW()`,
		tenantID, source)
	return err
}

func (p *pgStore) RemovePolicy(ctx context.Context, tenantID string) error {
	_, err := p.dbPool.Exec(ctx, `DELETE FROM link_policies WHERE tenant_id=$1`, tenantID)
	return err
}
