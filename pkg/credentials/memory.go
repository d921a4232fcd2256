// pkg/credentials/memory.go
package credentials

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is the in-memory Store used in dev and tests.
type memStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryStore() Store {
	return &memStore{recs: map[string]Record{}}
}

func (m *memStore) Create(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := m.recs[rec.ID]; ok {
		return Record{}, ErrConflict
	}
	for _, existing := range m.recs {
		if existing.TenantID == rec.TenantID && existing.PlatformID == rec.PlatformID && existing.Source == rec.Source {
			return Record{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.Health == "" {
		rec.Health = HealthUnknown
	}
	m.recs[rec.ID] = rec
	return rec, nil
}

func (m *memStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range m.recs {
		if existing.TenantID == rec.TenantID && existing.PlatformID == rec.PlatformID && existing.Source == rec.Source {
			rec.ID = id
			rec.CreatedAt = existing.CreatedAt
			rec.UpdatedAt = now
			if rec.Health == "" {
				rec.Health = HealthUnknown
			}
			m.recs[id] = rec
			return rec, nil
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.Health == "" {
		rec.Health = HealthUnknown
	}
	m.recs[rec.ID] = rec
	return rec, nil
}

func (m *memStore) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Find(ctx context.Context, tenantID, platformID string, source Source) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.recs {
		if rec.TenantID == tenantID && rec.PlatformID == platformID && rec.Source == source {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *memStore) ListByTenant(ctx context.Context, tenantID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.recs {
		if rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *memStore) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *memStore) ApplyCheck(ctx context.Context, id string, res CheckResult) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.apply(res)
	rec.UpdatedAt = time.Now().UTC()
	m.recs[id] = rec
	return rec, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

// sortRecords keeps listings stable for callers that render them.
func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].PlatformID != recs[j].PlatformID {
			return recs[i].PlatformID < recs[j].PlatformID
		}
		return recs[i].Source < recs[j].Source
	})
}
