// pkg/nonce/memory.go
package nonce

import (
	"context"
	"sync"
	"time"
)

// memStore is the single-process nonce store used in dev and tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() Store {
	return &memStore{entries: map[string]time.Time{}, now: time.Now}
}

func (m *memStore) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[nonce] = m.now().Add(ttl)
	m.purgeLocked()
	return nil
}

func (m *memStore) Consume(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[nonce]
	if !ok {
		return false, nil
	}
	delete(m.entries, nonce)
	if m.now().After(exp) {
		return false, nil
	}
	return true, nil
}

// purgeLocked drops expired entries so the map does not grow unbounded in
// long-lived dev processes.
func (m *memStore) purgeLocked() {
	now := m.now()
	for n, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, n)
		}
	}
}
