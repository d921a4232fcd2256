// pkg/credentials/store.go
package credentials

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("credential not found")
	ErrConflict = errors.New("credential already exists")
)

// Store persists credential records. ApplyCheck must be atomic per record: a
// concurrent reader sees either the whole previous state or the whole new
// one, never a half-applied check.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	// Upsert replaces the record keyed by (tenant, platform, source),
	// creating it when absent. Used by the oauth broker after an exchange.
	Upsert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// Find matches TenantID, PlatformID and Source exactly; platform-owned
	// records are addressed with an empty tenant id.
	Find(ctx context.Context, tenantID, platformID string, source Source) (Record, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Record, error)
	List(ctx context.Context) ([]Record, error)
	ApplyCheck(ctx context.Context, id string, res CheckResult) (Record, error)
	Delete(ctx context.Context, id string) error
}
