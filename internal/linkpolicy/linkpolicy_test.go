// internal/linkpolicy/linkpolicy_test.go
package linkpolicy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const byokOnlyPolicy = `package edgegate.link

default decide = {"allow": true, "reasons": []}

decide = {"allow": false, "reasons": ["byok_required_for_llm"]} {
	input.provider == "openai"
}
`

func newService(t *testing.T) (*Service, SourceStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, zap.NewNop().Sugar()), store
}

func TestAllowWithoutPolicy(t *testing.T) {
	svc, _ := newService(t)
	allow, reasons, err := svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.NoError(t, err)
	assert.True(t, allow)
	assert.Empty(t, reasons)
}

func TestPolicyBlocksWithReasons(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.SetPolicy(context.Background(), "coreldove", byokOnlyPolicy))

	allow, reasons, err := svc.Allow(context.Background(), "coreldove", "openai", "u1")
	require.NoError(t, err)
	assert.False(t, allow)
	assert.Equal(t, []string{"byok_required_for_llm"}, reasons)

	allow, _, err = svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.NoError(t, err)
	assert.True(t, allow, "the default rule still admits other providers")
}

func TestPolicyScopedToTenant(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.SetPolicy(context.Background(), "coreldove", byokOnlyPolicy))

	allow, _, err := svc.Allow(context.Background(), "thrillring", "openai", "u1")
	require.NoError(t, err)
	assert.True(t, allow, "another tenant's policy does not apply")
}

func TestBrokenPolicyBlocks(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.SetPolicy(context.Background(), "coreldove", `package edgegate.link
this is not rego`))

	allow, reasons, err := svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.NoError(t, err)
	assert.False(t, allow, "a policy that cannot evaluate never grants access")
	assert.Equal(t, []string{"policy_error"}, reasons)
}

func TestWrongEntrypointBlocks(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.SetPolicy(context.Background(), "coreldove", `package somewhere.else

decide = true
`))

	allow, reasons, err := svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.NoError(t, err)
	assert.False(t, allow)
	assert.Equal(t, []string{"policy_error"}, reasons)
}

func TestBareBooleanDecision(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.SetPolicy(context.Background(), "coreldove", `package edgegate.link

decide = false
`))

	allow, _, err := svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.NoError(t, err)
	assert.False(t, allow)
}

type failingSource struct{}

func (failingSource) PolicySource(ctx context.Context, tenantID string) (string, error) {
	return "", errors.New("pg down")
}
func (failingSource) SetPolicy(ctx context.Context, tenantID, source string) error { return nil }
func (failingSource) RemovePolicy(ctx context.Context, tenantID string) error { return nil }

func TestStorageErrorPropagates(t *testing.T) {
	svc := NewService(failingSource{}, zap.NewNop().Sugar())
	allow, _, err := svc.Allow(context.Background(), "coreldove", "hubspot", "u1")
	require.Error(t, err)
	assert.False(t, allow)
}

func TestRemovePolicyRestoresAllow(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	require.NoError(t, store.SetPolicy(ctx, "coreldove", byokOnlyPolicy))

	allow, _, err := svc.Allow(ctx, "coreldove", "openai", "u1")
	require.NoError(t, err)
	require.False(t, allow)

	require.NoError(t, store.RemovePolicy(ctx, "coreldove"))
	allow, _, err = svc.Allow(ctx, "coreldove", "openai", "u1")
	require.NoError(t, err)
	assert.True(t, allow)
}
