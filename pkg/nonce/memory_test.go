// pkg/nonce/memory_test.go
package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "n1", time.Minute))

	ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok, "second consume must lose")
}

func TestConsumeUnknown(t *testing.T) {
	s := NewMemoryStore()
	ok, err := s.Consume(context.Background(), "never-put")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeExpired(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	s := &memStore{entries: map[string]time.Time{}, now: func() time.Time { return base }}
	require.NoError(t, s.Put(ctx, "n1", time.Minute))

	base = base.Add(2 * time.Minute)
	ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "n1", time.Minute))

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Consume(ctx, "n1"); ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestPutPurgesExpired(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	s := &memStore{entries: map[string]time.Time{}, now: func() time.Time { return base }}
	require.NoError(t, s.Put(ctx, "old", time.Minute))

	base = base.Add(time.Hour)
	require.NoError(t, s.Put(ctx, "new", time.Minute))
	assert.Len(t, s.entries, 1)
}
