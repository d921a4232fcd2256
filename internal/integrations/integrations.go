// internal/integrations/integrations.go
package integrations

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
	"edgegate/pkg/middleware"
	"edgegate/pkg/problems"
)

// Handlers serves the tenant-facing integrations overview: every provider
// in the catalog with its link state and whatever the monitor knows about
// the credential behind it.
type Handlers struct {
	catalog *catalog.Catalog
	store   credentials.Store
	log     *zap.SugaredLogger
}

func NewHandlers(cat *catalog.Catalog, store credentials.Store, log *zap.SugaredLogger) *Handlers {
	return &Handlers{catalog: cat, store: store, log: log}
}

func (h *Handlers) Mount(r chi.Router) {
	r.Get("/v1/integrations", h.list)
}

// item is one provider row on the integrations surface.
type item struct {
	ID             string             `json:"id"`
	DisplayName    string             `json:"display_name"`
	Capabilities   []string           `json:"capabilities"`
	Scopes         []string           `json:"scopes"`
	Linked         bool               `json:"linked"`
	Source         credentials.Source `json:"source,omitempty"`
	Health         credentials.Health `json:"health_status,omitempty"`
	QuotaRemaining int64              `json:"quota_remaining,omitempty"`
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	if tenant.ID == "" {
		problems.Render(w, faults.TenantNotResolved)
		return
	}

	own, err := h.store.ListByTenant(r.Context(), tenant.ID)
	if err != nil {
		problems.Render(w, err)
		return
	}
	pool, err := h.store.ListByTenant(r.Context(), "")
	if err != nil {
		problems.Render(w, err)
		return
	}
	tenantRecs := map[string]credentials.Record{}
	for _, rec := range own {
		tenantRecs[rec.PlatformID] = rec
	}
	poolRecs := map[string]credentials.Record{}
	for _, rec := range pool {
		poolRecs[rec.PlatformID] = rec
	}

	items := make([]item, 0)
	for _, prov := range h.catalog.List() {
		it := item{
			ID:           prov.ID,
			DisplayName:  prov.DisplayName,
			Capabilities: prov.Capabilities,
			Scopes:       prov.Scopes,
		}
		if rec, ok := tenantRecs[prov.ID]; ok {
			it.Linked = true
			it.Source = rec.Source
			it.Health = rec.Health
			it.QuotaRemaining = rec.QuotaRemaining
		} else if rec, ok := poolRecs[prov.ID]; ok {
			it.Source = rec.Source
			it.Health = rec.Health
		}
		items = append(items, it)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"tenant_id": tenant.ID,
		"strategy":  tenant.Strategy(),
		"items":     items,
	})
}
