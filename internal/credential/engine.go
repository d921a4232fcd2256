// internal/credential/engine.go
package credential

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"edgegate/internal/costest"
	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
	"edgegate/pkg/ledger"
	"edgegate/pkg/metrics"
	"edgegate/pkg/tenants"
)

// Input identifies one integration call about to happen.
type Input struct {
	TenantID   string `json:"tenant_id"`
	PlatformID string `json:"platform_id"`
	Capability string `json:"capability,omitempty"`
}

// Selection is the engine's answer: whose credential the call should use.
// Callers that get a fault instead must render a needs-setup or quota state,
// not retry.
type Selection struct {
	Source   credentials.Source   `json:"source"`
	RecordID string               `json:"record_id"`
	Strategy credentials.Strategy `json:"strategy"`
}

// UsageProjector estimates the unit volume a tenant will push through a
// provider over the remaining billing window. AUTO_RESOLVE prices
// candidates against this projection.
type UsageProjector interface {
	Project(ctx context.Context, tenantID string, prov catalog.Provider) costest.Usage
}

// FlatProjector projects the same fixed volume for every kind the
// provider's schedules price.
type FlatProjector struct {
	Units int64
}

func (p FlatProjector) Project(_ context.Context, _ string, prov catalog.Provider) costest.Usage {
	u := costest.Usage{}
	for _, fees := range prov.Fees {
		for kind := range fees.PerUnitRates {
			u[kind] = p.Units
		}
	}
	return u
}

// Engine decides, per integration call, which credential source to use.
type Engine struct {
	tenants   tenants.Provider
	store     credentials.Store
	catalog   *catalog.Catalog
	recorder  ledger.Recorder
	projector UsageProjector
	log       *zap.SugaredLogger
}

func NewEngine(tp tenants.Provider, store credentials.Store, cat *catalog.Catalog, rec ledger.Recorder, proj UsageProjector, log *zap.SugaredLogger) *Engine {
	if proj == nil {
		proj = FlatProjector{Units: 10000}
	}
	return &Engine{tenants: tp, store: store, catalog: cat, recorder: rec, projector: proj, log: log}
}

// candidates holds the at-most-two records in play for a tenant/platform
// pair.
type candidates struct {
	tenant   *credentials.Record
	platform *credentials.Record
}

// decideFunc selects a record under one strategy. The bool reports a
// failover so Resolve can emit the event.
type decideFunc func(e *Engine, ctx context.Context, in Input, prov catalog.Provider, c candidates) (*credentials.Record, bool, error)

// strategyPolicies is the only place strategy behavior branches.
var strategyPolicies = map[credentials.Strategy]decideFunc{
	credentials.StrategyBYOK:            decideBYOK,
	credentials.StrategyPlatformManaged: decidePlatform,
	credentials.StrategyHybrid:          decideHybrid,
	credentials.StrategyAutoResolve:     decideAuto,
}

// Resolve picks the credential source for in per the tenant's strategy.
func (e *Engine) Resolve(ctx context.Context, in Input) (Selection, error) {
	prov, ok := e.catalog.Get(in.PlatformID)
	if !ok {
		return e.fail(in, "", faults.Newf(faults.CredentialUnavailable, "unknown platform %q", in.PlatformID))
	}
	if !prov.HasCapability(in.Capability) {
		return e.fail(in, "", faults.Newf(faults.CredentialUnavailable, "platform %q does not offer %q", in.PlatformID, in.Capability))
	}

	ten, err := e.tenants.TenantByID(ctx, in.TenantID)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			return e.fail(in, "", faults.Newf(faults.TenantNotResolved, "unknown tenant %q", in.TenantID))
		}
		return Selection{}, err
	}
	strategy := ten.Strategy()

	c, err := e.loadCandidates(ctx, in)
	if err != nil {
		return Selection{}, err
	}

	rec, failedOver, err := strategyPolicies[strategy](e, ctx, in, prov, c)
	if err != nil {
		return e.fail(in, strategy, err)
	}
	if quotaKnownExhausted(rec) {
		return e.fail(in, strategy, faults.Newf(faults.QuotaExhausted, "%s credential for %q has no remaining quota", rec.Source, in.PlatformID))
	}

	metrics.ResolutionsTotal.WithLabelValues(string(strategy), string(rec.Source), "ok").Inc()
	if failedOver {
		metrics.FailoversTotal.WithLabelValues(in.PlatformID).Inc()
		e.log.Warnw("credential failover to platform", "tenant", in.TenantID, "platform", in.PlatformID)
		e.record(ctx, ledger.Event{
			TenantID:   in.TenantID,
			PlatformID: in.PlatformID,
			Kind:       ledger.KindFailover,
			Source:     rec.Source,
			Detail:     map[string]any{"strategy": string(strategy)},
		})
	}
	if rec.Source == credentials.SourcePlatform {
		e.record(ctx, ledger.Event{
			TenantID:   in.TenantID,
			PlatformID: in.PlatformID,
			Kind:       ledger.KindUsage,
			Source:     rec.Source,
			Detail:     map[string]any{"capability": in.Capability},
		})
	}
	return Selection{Source: rec.Source, RecordID: rec.ID, Strategy: strategy}, nil
}

func (e *Engine) loadCandidates(ctx context.Context, in Input) (candidates, error) {
	var c candidates
	tenantRec, err := e.store.Find(ctx, in.TenantID, in.PlatformID, credentials.SourceTenant)
	switch {
	case err == nil:
		c.tenant = &tenantRec
	case !errors.Is(err, credentials.ErrNotFound):
		return c, err
	}
	// Platform-owned records carry no tenant id.
	platformRec, err := e.store.Find(ctx, "", in.PlatformID, credentials.SourcePlatform)
	switch {
	case err == nil:
		c.platform = &platformRec
	case !errors.Is(err, credentials.ErrNotFound):
		return c, err
	}
	return c, nil
}

func (e *Engine) fail(in Input, strategy credentials.Strategy, err error) (Selection, error) {
	label := string(strategy)
	if label == "" {
		label = "none"
	}
	metrics.ResolutionsTotal.WithLabelValues(label, "none", string(faults.KindOf(err))).Inc()
	return Selection{}, err
}

func (e *Engine) record(ctx context.Context, ev ledger.Event) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.log.Warnw("ledger record failed", "kind", ev.Kind, "tenant", ev.TenantID, "err", err)
	}
}

// quotaKnownExhausted is true only when a check has actually reported zero
// quota. Records the monitor has never visited have unknown quota, not zero.
func quotaKnownExhausted(r *credentials.Record) bool {
	return !r.LastCheckedAt.IsZero() && r.QuotaRemaining <= 0
}

func decideBYOK(e *Engine, ctx context.Context, in Input, prov catalog.Provider, c candidates) (*credentials.Record, bool, error) {
	// Never substitute the platform credential under BYOK.
	if c.tenant == nil {
		return nil, false, faults.Newf(faults.CredentialUnavailable, "tenant %q has no credential for %q", in.TenantID, in.PlatformID)
	}
	if c.tenant.Health == credentials.HealthUnhealthy {
		return nil, false, faults.Newf(faults.CredentialUnavailable, "tenant credential for %q is unhealthy", in.PlatformID)
	}
	return c.tenant, false, nil
}

func decidePlatform(e *Engine, ctx context.Context, in Input, prov catalog.Provider, c candidates) (*credentials.Record, bool, error) {
	if c.platform == nil {
		return nil, false, faults.Newf(faults.CredentialUnavailable, "no platform credential provisioned for %q", in.PlatformID)
	}
	return c.platform, false, nil
}

func decideHybrid(e *Engine, ctx context.Context, in Input, prov catalog.Provider, c candidates) (*credentials.Record, bool, error) {
	if c.tenant != nil && c.tenant.Health == credentials.HealthHealthy {
		return c.tenant, false, nil
	}
	if c.platform == nil || c.platform.Health == credentials.HealthUnhealthy {
		return nil, false, faults.Newf(faults.CredentialUnavailable, "no usable credential for %q", in.PlatformID)
	}
	return c.platform, true, nil
}

func decideAuto(e *Engine, ctx context.Context, in Input, prov catalog.Provider, c candidates) (*credentials.Record, bool, error) {
	usage := e.projector.Project(ctx, in.TenantID, prov)

	var best *credentials.Record
	var bestCost float64
	for _, cand := range []*credentials.Record{c.tenant, c.platform} {
		if cand == nil || cand.Health != credentials.HealthHealthy {
			continue
		}
		cost := costest.Project(prov.FeesFor(scheduleFor(cand.Source)), usage)
		if best == nil || cost < bestCost || (cost == bestCost && betterHistory(cand, best)) {
			best, bestCost = cand, cost
		}
	}
	if best == nil {
		return nil, false, faults.Newf(faults.CredentialUnavailable, "no healthy credential for %q", in.PlatformID)
	}
	return best, false, nil
}

// scheduleFor maps a credential source to the fee schedule it is billed
// under: tenant keys ride the BYOK schedule, platform keys the managed one.
func scheduleFor(s credentials.Source) credentials.Strategy {
	if s == credentials.SourceTenant {
		return credentials.StrategyBYOK
	}
	return credentials.StrategyPlatformManaged
}

// betterHistory breaks cost ties: higher recent success rate wins, then
// lower latency.
func betterHistory(a, b *credentials.Record) bool {
	if a.Stats.SuccessRate != b.Stats.SuccessRate {
		return a.Stats.SuccessRate > b.Stats.SuccessRate
	}
	return a.Stats.LatencyMS < b.Stats.LatencyMS
}
