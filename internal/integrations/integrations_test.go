// internal/integrations/integrations_test.go
package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/middleware"
	"edgegate/pkg/tenants"
)

func TestListMergesCatalogAndLinkState(t *testing.T) {
	log := zap.NewNop().Sugar()
	cat, err := catalog.New(log, "")
	require.NoError(t, err)
	store := credentials.NewMemoryStore()
	ctx := context.Background()

	_, err = store.Create(ctx, credentials.Record{
		TenantID: "coreldove", PlatformID: "hubspot", Source: credentials.SourceTenant,
		Health: credentials.HealthHealthy, QuotaRemaining: 4200,
	})
	require.NoError(t, err)
	_, err = store.Create(ctx, credentials.Record{
		PlatformID: "openai", Source: credentials.SourcePlatform,
		Health: credentials.HealthUnhealthy,
	})
	require.NoError(t, err)

	resolver := tenants.NewResolver(tenants.NewMemoryProvider(log, tenants.Tenant{
		ID: "coreldove", Slug: "coreldove", Subdomain: "coreldove",
		CredentialStrategy: credentials.StrategyHybrid,
	}), "")

	r := chi.NewRouter()
	r.Use(middleware.WithTenant(resolver))
	NewHandlers(cat, store, log).Mount(r)

	req := httptest.NewRequest(http.MethodGet, "http://coreldove.example.com/v1/integrations", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TenantID string `json:"tenant_id"`
		Strategy string `json:"strategy"`
		Items    []item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "coreldove", resp.TenantID)
	assert.Equal(t, "HYBRID", resp.Strategy)
	require.Len(t, resp.Items, 5, "every catalog provider appears")

	byID := map[string]item{}
	for _, it := range resp.Items {
		byID[it.ID] = it
	}
	hubspot := byID["hubspot"]
	assert.True(t, hubspot.Linked)
	assert.Equal(t, credentials.SourceTenant, hubspot.Source)
	assert.Equal(t, credentials.HealthHealthy, hubspot.Health)
	assert.Equal(t, int64(4200), hubspot.QuotaRemaining)

	openai := byID["openai"]
	assert.False(t, openai.Linked, "a platform pool key is not a tenant link")
	assert.Equal(t, credentials.SourcePlatform, openai.Source)
	assert.Equal(t, credentials.HealthUnhealthy, openai.Health)

	slack := byID["slack"]
	assert.False(t, slack.Linked)
	assert.Empty(t, slack.Source)
}

func TestListRequiresTenant(t *testing.T) {
	log := zap.NewNop().Sugar()
	cat, err := catalog.New(log, "")
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandlers(cat, credentials.NewMemoryStore(), log).Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/integrations", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "tenant-not-resolved")
}
