// internal/credential/handlers_test.go
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edgegate/internal/costest"
	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/ledger"
	"edgegate/pkg/tenants"
)

type serviceFixture struct {
	router *chi.Mux
	store  credentials.Store
	events *ledger.MemoryRecorder
	tp     tenants.Provider
}

func newServiceFixture(t *testing.T, strategy credentials.Strategy, sealKey string) *serviceFixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	cat, err := catalog.New(log, "")
	require.NoError(t, err)

	f := &serviceFixture{
		store:  credentials.NewMemoryStore(),
		events: ledger.NewMemoryRecorder(),
		tp: tenants.NewMemoryProvider(log, tenants.Tenant{
			ID: "coreldove", Slug: "coreldove", CredentialStrategy: strategy,
		}),
	}
	engine := NewEngine(f.tp, f.store, cat, f.events, nil, log)

	f.router = chi.NewRouter()
	NewHandlers(engine, f.store, cat, 10, log).Mount(f.router)
	NewAdmin(f.store, cat, f.tp, f.events, sealKey, log).Mount(f.router)
	return f
}

func (f *serviceFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestResolveEndpoint(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyPlatformManaged, "")
	_, err := f.store.Create(context.Background(), credentials.Record{
		PlatformID: "openai", Source: credentials.SourcePlatform,
		Health: credentials.HealthHealthy, QuotaRemaining: 9000,
		LastCheckedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/resolve", Input{TenantID: "coreldove", PlatformID: "openai", Capability: "llm.chat"})
	require.Equal(t, http.StatusOK, rec.Code)

	var sel Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, credentials.SourcePlatform, sel.Source)
	assert.Equal(t, credentials.StrategyPlatformManaged, sel.Strategy)
}

func TestResolveEndpointRendersTypedProblems(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "")

	rec := f.do(t, http.MethodPost, "/v1/resolve", Input{TenantID: "coreldove", PlatformID: "openai"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem struct {
		Type   string `json:"type"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Type, "credential-unavailable")
	assert.Equal(t, http.StatusConflict, problem.Status)
}

func TestStatusEndpointMergesTenantAndPool(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyHybrid, "")
	ctx := context.Background()
	_, err := f.store.Create(ctx, credentials.Record{
		TenantID: "coreldove", PlatformID: "openai", Source: credentials.SourceTenant,
		Health: credentials.HealthHealthy, QuotaRemaining: 100,
	})
	require.NoError(t, err)
	_, err = f.store.Create(ctx, credentials.Record{
		PlatformID: "openai", Source: credentials.SourcePlatform,
		Health: credentials.HealthUnhealthy,
	})
	require.NoError(t, err)
	_, err = f.store.Create(ctx, credentials.Record{
		TenantID: "someone-else", PlatformID: "openai", Source: credentials.SourceTenant,
		Health: credentials.HealthHealthy,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/credentials/status?tenant_id=coreldove", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "coreldove", resp.TenantID)
	assert.Equal(t, 2, resp.TotalCount, "own record plus platform pool, never other tenants")
	assert.Equal(t, 1, resp.HealthyCount)
}

func TestEstimateEndpoint(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyPlatformManaged, "")

	rec := f.do(t, http.MethodPost, "/v1/cost-estimates", estimateRequest{
		PlatformID:        "openai",
		CurrentStrategy:   "PLATFORM_MANAGED",
		CandidateStrategy: "BYOK",
		Usage:             costest.Usage{"token_1k": 5000},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var est costest.Estimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &est))
	assert.Equal(t, 29.0, est.CurrentMonthlyCost)
	assert.Equal(t, 10.0, est.ProposedMonthlyCost)
	assert.Equal(t, costest.RecommendSwitch, est.Recommendation)
}

func TestAdminUpsertSealsSecrets(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "ops-seal-key")

	rec := f.do(t, http.MethodPost, "/v1/admin/credentials", credentialBody{
		TenantID:   "coreldove",
		PlatformID: "openai",
		Source:     "tenant",
		Secrets:    map[string]string{"api_key": "sk-test-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := f.store.Find(context.Background(), "coreldove", "openai", credentials.SourceTenant)
	require.NoError(t, err)
	require.NotEmpty(t, stored.SecretEncrypted)
	assert.Equal(t, byte(0x01), stored.SecretEncrypted[0])
	assert.NotContains(t, string(stored.SecretEncrypted), "sk-test-1")
	assert.Equal(t, credentials.HealthUnknown, stored.Health, "fresh records await their first check")

	var sawIntake bool
	for _, e := range f.events.Events() {
		sawIntake = sawIntake || e.Kind == ledger.KindIntake
	}
	assert.True(t, sawIntake)
}

func TestAdminUpsertWithoutSecretsKeepsCiphertext(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "ops-seal-key")

	first := f.do(t, http.MethodPost, "/v1/admin/credentials", credentialBody{
		TenantID: "coreldove", PlatformID: "openai", Source: "tenant",
		Secrets: map[string]string{"api_key": "sk-test-1"},
	})
	require.Equal(t, http.StatusCreated, first.Code)
	before, err := f.store.Find(context.Background(), "coreldove", "openai", credentials.SourceTenant)
	require.NoError(t, err)

	second := f.do(t, http.MethodPost, "/v1/admin/credentials", credentialBody{
		TenantID: "coreldove", PlatformID: "openai", Source: "tenant",
		QuotaRemaining: 4000,
	})
	require.Equal(t, http.StatusCreated, second.Code)

	after, err := f.store.Find(context.Background(), "coreldove", "openai", credentials.SourceTenant)
	require.NoError(t, err)
	assert.Equal(t, before.SecretEncrypted, after.SecretEncrypted)
	assert.Equal(t, int64(4000), after.QuotaRemaining)
}

func TestAdminPlatformCredentialDropsTenantID(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyPlatformManaged, "")

	rec := f.do(t, http.MethodPost, "/v1/admin/credentials", credentialBody{
		TenantID:   "coreldove",
		PlatformID: "openai",
		Source:     "platform",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := f.store.Find(context.Background(), "", "openai", credentials.SourcePlatform)
	require.NoError(t, err)
	assert.Empty(t, stored.TenantID)
}

func TestAdminRejectsUnknownPlatform(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "")
	rec := f.do(t, http.MethodPost, "/v1/admin/credentials", credentialBody{
		TenantID: "coreldove", PlatformID: "fax-machine", Source: "tenant",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminDelete(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "")
	created, err := f.store.Create(context.Background(), credentials.Record{
		TenantID: "coreldove", PlatformID: "openai", Source: credentials.SourceTenant,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/v1/admin/credentials/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/admin/credentials/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "second delete finds nothing")
}

func TestAdminSetStrategyChangesResolution(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyPlatformManaged, "")
	_, err := f.store.Create(context.Background(), credentials.Record{
		TenantID: "coreldove", PlatformID: "openai", Source: credentials.SourceTenant,
		Health: credentials.HealthHealthy, QuotaRemaining: 100, LastCheckedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = f.store.Create(context.Background(), credentials.Record{
		PlatformID: "openai", Source: credentials.SourcePlatform,
		Health: credentials.HealthHealthy, QuotaRemaining: 9000, LastCheckedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/resolve", Input{TenantID: "coreldove", PlatformID: "openai"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sel Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, credentials.SourcePlatform, sel.Source)

	put := f.do(t, http.MethodPut, "/v1/admin/tenants/coreldove/strategy", map[string]string{"strategy": "BYOK"})
	require.Equal(t, http.StatusOK, put.Code)

	rec = f.do(t, http.MethodPost, "/v1/resolve", Input{TenantID: "coreldove", PlatformID: "openai"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, credentials.SourceTenant, sel.Source)
	assert.Equal(t, credentials.StrategyBYOK, sel.Strategy)
}

func TestAdminSetStrategyRejectsUnknown(t *testing.T) {
	f := newServiceFixture(t, credentials.StrategyBYOK, "")
	rec := f.do(t, http.MethodPut, "/v1/admin/tenants/coreldove/strategy", map[string]string{"strategy": "YOLO"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPut, "/v1/admin/tenants/ghost/strategy", map[string]string{"strategy": "HYBRID"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
