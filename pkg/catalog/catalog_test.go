// pkg/catalog/catalog_test.go
package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edgegate/pkg/credentials"
)

func TestBuiltinsHaveDefaults(t *testing.T) {
	c, err := New(zap.NewNop().Sugar(), "")
	require.NoError(t, err)

	p, ok := c.Get("hubspot")
	require.True(t, ok)
	assert.Equal(t, "HubSpot", p.DisplayName)
	assert.Equal(t, "valid", p.ValidExpr)
	assert.Equal(t, "quota_remaining", p.QuotaExpr)
	assert.True(t, p.HasCapability("crm.contacts"))
	assert.False(t, p.HasCapability("llm.chat"))
	assert.True(t, p.HasCapability(""), "empty capability matches everything")
}

func TestListIsSorted(t *testing.T) {
	c, err := New(zap.NewNop().Sugar(), "")
	require.NoError(t, err)
	list := c.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestOverlayReplacesBuiltin(t *testing.T) {
	dir := t.TempDir()
	spec := `
id: openai
display_name: OpenAI (EU)
authorize_url: https://eu.platform.openai.com/oauth/authorize
capabilities: [llm.chat]
quota_expr: limits.remaining
fees:
  byok:
    monthly_base_fee: 0
    per_unit_rates: {token_1k: 0.0018}
  platform_managed:
    monthly_base_fee: 35
    per_unit_rates: {token_1k: 0.0028}
    included_quota: 600000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openai.yaml"), []byte(spec), 0o644))

	c, err := New(zap.NewNop().Sugar(), dir)
	require.NoError(t, err)

	p, ok := c.Get("openai")
	require.True(t, ok)
	assert.Equal(t, "OpenAI (EU)", p.DisplayName)
	assert.Equal(t, "limits.remaining", p.QuotaExpr)
	assert.Equal(t, "valid", p.ValidExpr, "unset exprs fall back to defaults")
	assert.Equal(t, 35.0, p.FeesFor(credentials.StrategyPlatformManaged).MonthlyBaseFee)
	assert.EqualValues(t, 600000, p.FeesFor(credentials.StrategyPlatformManaged).IncludedQuota)
}

func TestCredsComeFromEnv(t *testing.T) {
	t.Setenv("HUBSPOT_CLIENT_ID", "cid-123")
	t.Setenv("HUBSPOT_CLIENT_SECRET", "cs-456")
	c, err := New(zap.NewNop().Sugar(), "")
	require.NoError(t, err)
	p, _ := c.Get("hubspot")
	id, secret := p.Creds()
	assert.Equal(t, "cid-123", id)
	assert.Equal(t, "cs-456", secret)
}
