// pkg/credentials/postgres.go
package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"edgegate/pkg/db"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the credentials table if missing. Safe to call
// repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credentials (
  id text PRIMARY KEY,
  tenant_id text NOT NULL DEFAULT '',
  platform_id text NOT NULL,
  source text NOT NULL,
  strategy text NOT NULL DEFAULT '',
  health text NOT NULL DEFAULT 'unknown',
  quota_remaining bigint NOT NULL DEFAULT 0,
  expires_at timestamptz,
  last_checked_at timestamptz,
  success_rate double precision NOT NULL DEFAULT 0,
  latency_ms double precision NOT NULL DEFAULT 0,
  secret_encrypted bytea,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  UNIQUE (tenant_id, platform_id, source)
);
CREATE INDEX IF NOT EXISTS credentials_tenant_idx ON credentials(tenant_id);
`)
	return err
}

const recordCols = `id, tenant_id, platform_id, source, strategy, health, quota_remaining, expires_at, last_checked_at, success_rate, latency_ms, secret_encrypted, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var exp, chk *time.Time
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.PlatformID, &rec.Source, &rec.Strategy, &rec.Health,
		&rec.QuotaRemaining, &exp, &chk, &rec.Stats.SuccessRate, &rec.Stats.LatencyMS,
		&rec.SecretEncrypted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	if exp != nil {
		rec.ExpiresAt = *exp
	}
	if chk != nil {
		rec.LastCheckedAt = *chk
	}
	return rec, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (p *pgStore) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Health == "" {
		rec.Health = HealthUnknown
	}
	tx, err := db.TenantTx(ctx, p.dbPool, rec.TenantID)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	row := tx.QueryRow(ctx, `INSERT INTO credentials (id, tenant_id, platform_id, source, strategy, health, quota_remaining, expires_at, last_checked_at, success_rate, latency_ms, secret_encrypted)
	  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	  RETURNING created_at, updated_at`,
		rec.ID, rec.TenantID, rec.PlatformID, rec.Source, rec.Strategy, rec.Health,
		rec.QuotaRemaining, nullableTime(rec.ExpiresAt), nullableTime(rec.LastCheckedAt),
		rec.Stats.SuccessRate, rec.Stats.LatencyMS, rec.SecretEncrypted)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, ErrConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *pgStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Health == "" {
		rec.Health = HealthUnknown
	}
	row := p.dbPool.QueryRow(ctx, `INSERT INTO credentials (id, tenant_id, platform_id, source, strategy, health, quota_remaining, expires_at, last_checked_at, success_rate, latency_ms, secret_encrypted)
	  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	  ON CONFLICT (tenant_id, platform_id, source) DO UPDATE SET
	    strategy=EXCLUDED.strategy,
	    secret_encrypted=EXCLUDED.secret_encrypted,
	    health=EXCLUDED.health,
	    quota_remaining=EXCLUDED.quota_remaining,
	    expires_at=EXCLUDED.expires_at,
	    updated_at=NOW()
	  RETURNING id, created_at, updated_at`,
		rec.ID, rec.TenantID, rec.PlatformID, rec.Source, rec.Strategy, rec.Health,
		rec.QuotaRemaining, nullableTime(rec.ExpiresAt), nullableTime(rec.LastCheckedAt),
		rec.Stats.SuccessRate, rec.Stats.LatencyMS, rec.SecretEncrypted)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *pgStore) Get(ctx context.Context, id string) (Record, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+recordCols+` FROM credentials WHERE id=$1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (p *pgStore) Find(ctx context.Context, tenantID, platformID string, source Source) (Record, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+recordCols+` FROM credentials WHERE tenant_id=$1 AND platform_id=$2 AND source=$3`, tenantID, platformID, source)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (p *pgStore) ListByTenant(ctx context.Context, tenantID string) ([]Record, error) {
	return p.list(ctx, `SELECT `+recordCols+` FROM credentials WHERE tenant_id=$1 ORDER BY platform_id, source`, tenantID)
}

func (p *pgStore) List(ctx context.Context) ([]Record, error) {
	return p.list(ctx, `SELECT `+recordCols+` FROM credentials ORDER BY platform_id, source`)
}

func (p *pgStore) list(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := p.dbPool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ApplyCheck folds a check result into the record under a row lock so
// concurrent readers never observe a half-applied update.
func (p *pgStore) ApplyCheck(ctx context.Context, id string, res CheckResult) (Record, error) {
	tx, err := p.dbPool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+recordCols+` FROM credentials WHERE id=$1 FOR UPDATE`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.apply(res)
	if _, err := tx.Exec(ctx, `UPDATE credentials SET health=$2, quota_remaining=$3, expires_at=$4, last_checked_at=$5, success_rate=$6, latency_ms=$7, updated_at=NOW() WHERE id=$1`,
		rec.ID, rec.Health, rec.QuotaRemaining, nullableTime(rec.ExpiresAt), nullableTime(rec.LastCheckedAt),
		rec.Stats.SuccessRate, rec.Stats.LatencyMS); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *pgStore) Delete(ctx context.Context, id string) error {
	tag, err := p.dbPool.Exec(ctx, `DELETE FROM credentials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
