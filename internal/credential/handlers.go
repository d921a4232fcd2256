// internal/credential/handlers.go
package credential

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"edgegate/internal/costest"
	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
	"edgegate/pkg/middleware"
	"edgegate/pkg/problems"
)

// Handlers is the credential service's internal HTTP surface. Callers are
// platform features, never browsers; responses are JSON throughout.
type Handlers struct {
	engine       *Engine
	store        credentials.Store
	catalog      *catalog.Catalog
	thresholdPct float64
	log          *zap.SugaredLogger
}

func NewHandlers(engine *Engine, store credentials.Store, cat *catalog.Catalog, thresholdPct float64, log *zap.SugaredLogger) *Handlers {
	return &Handlers{engine: engine, store: store, catalog: cat, thresholdPct: thresholdPct, log: log}
}

func (h *Handlers) Mount(r chi.Router) {
	r.Post("/v1/resolve", h.resolve)
	r.Get("/v1/credentials/status", h.status)
	r.Post("/v1/cost-estimates", h.estimate)
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "malformed resolve request"))
		return
	}
	if in.TenantID == "" {
		if caller, ok := middleware.CallerFrom(r.Context()); ok {
			in.TenantID = caller.TenantID
		}
	}

	sel, err := h.engine.Resolve(r.Context(), in)
	if err != nil {
		h.log.Infow("resolution refused", "tenant", in.TenantID, "platform", in.PlatformID, "kind", faults.KindOf(err))
		problems.Render(w, err)
		return
	}
	writeJSON(w, sel, http.StatusOK)
}

// statusResponse summarizes every credential visible to a tenant: its own
// records plus the platform pool.
type statusResponse struct {
	TenantID     string               `json:"tenant_id"`
	HealthyCount int                  `json:"healthy_count"`
	TotalCount   int                  `json:"total_count"`
	Statuses     []credentials.Record `json:"statuses"`
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		if caller, ok := middleware.CallerFrom(r.Context()); ok {
			tenantID = caller.TenantID
		}
	}
	if tenantID == "" {
		problems.Render(w, faults.New(faults.TenantNotResolved, "tenant_id is required"))
		return
	}
	platformID := r.URL.Query().Get("platform_id")

	own, err := h.store.ListByTenant(r.Context(), tenantID)
	if err != nil {
		problems.Render(w, err)
		return
	}
	pool, err := h.store.ListByTenant(r.Context(), "")
	if err != nil {
		problems.Render(w, err)
		return
	}

	resp := statusResponse{TenantID: tenantID}
	for _, rec := range append(own, pool...) {
		if platformID != "" && rec.PlatformID != platformID {
			continue
		}
		resp.Statuses = append(resp.Statuses, rec)
		resp.TotalCount++
		if rec.Health == credentials.HealthHealthy {
			resp.HealthyCount++
		}
	}
	sort.Slice(resp.Statuses, func(i, j int) bool {
		a, b := resp.Statuses[i], resp.Statuses[j]
		if a.PlatformID != b.PlatformID {
			return a.PlatformID < b.PlatformID
		}
		return a.Source < b.Source
	})
	writeJSON(w, resp, http.StatusOK)
}

// estimateRequest is a what-if comparison; nothing about it is persisted.
type estimateRequest struct {
	PlatformID        string        `json:"platform_id"`
	CurrentStrategy   string        `json:"current_strategy"`
	CandidateStrategy string        `json:"candidate_strategy"`
	Usage             costest.Usage `json:"usage"`
	ThresholdPct      *float64      `json:"threshold_pct,omitempty"`
}

func (h *Handlers) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "malformed estimate request"))
		return
	}
	prov, ok := h.catalog.Get(req.PlatformID)
	if !ok {
		problems.Render(w, faults.Newf(faults.CredentialUnavailable, "unknown platform %q", req.PlatformID))
		return
	}
	current, okCur := credentials.ParseStrategy(req.CurrentStrategy)
	candidate, okCand := credentials.ParseStrategy(req.CandidateStrategy)
	if !okCur || !okCand {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "unknown strategy in estimate request"))
		return
	}

	threshold := h.thresholdPct
	if req.ThresholdPct != nil {
		threshold = *req.ThresholdPct
	}
	est := costest.Compare(prov.FeesFor(current), prov.FeesFor(candidate), req.Usage, threshold)
	writeJSON(w, est, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
