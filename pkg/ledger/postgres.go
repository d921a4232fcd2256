// pkg/ledger/postgres.go
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgRecorder persists events to the credential_events table.
type pgRecorder struct {
	dbPool *pgxpool.Pool
}

func NewPostgresRecorder(dbPool *pgxpool.Pool) Recorder {
	return &pgRecorder{dbPool: dbPool}
}

// EnsureSchema creates the credential_events table if missing. Safe to call
// repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credential_events (
  id BIGSERIAL PRIMARY KEY,
  tenant_id text NOT NULL,
  platform_id text NOT NULL,
  kind text NOT NULL,
  source text NOT NULL DEFAULT '',
  detail jsonb NOT NULL DEFAULT '{}'::jsonb,
  at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS credential_events_tenant_idx ON credential_events(tenant_id, at);
`)
	return err
}

func (p *pgRecorder) Record(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	detail, _ := json.Marshal(e.Detail)
	_, err := p.dbPool.Exec(ctx, `INSERT INTO credential_events(tenant_id, platform_id, kind, source, detail, at)
	  VALUES ($1,$2,$3,$4,$5,$6)`,
		e.TenantID, e.PlatformID, e.Kind, string(e.Source), detail, e.At)
	return err
}
