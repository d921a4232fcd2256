// pkg/ledger/memory.go
package ledger

import (
	"context"
	"sync"
	"time"
)

const memCapacity = 1024

// MemoryRecorder keeps the most recent events in memory. It is the dev
// recorder and the test double.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	m.events = append(m.events, e)
	if len(m.events) > memCapacity {
		m.events = m.events[len(m.events)-memCapacity:]
	}
	return nil
}

// Events returns a snapshot of recorded events.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
