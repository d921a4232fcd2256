// internal/health/monitor.go
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/metrics"
)

// Monitor sweeps every credential record on a fixed interval, applies the
// prober's findings and leaves health states the resolution engine can
// trust. A record whose quota hit zero is unhealthy within one interval.
type Monitor struct {
	store    credentials.Store
	catalog  *catalog.Catalog
	prober   Prober
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewMonitor(store credentials.Store, cat *catalog.Catalog, prober Prober, interval time.Duration, log *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{store: store, catalog: cat, prober: prober, interval: interval, log: log}
}

// Sweep summarizes one monitor pass.
type Sweep struct {
	Checked   int
	Unhealthy int
	Duration  time.Duration
}

// Start runs sweeps until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweep, err := m.RunOnce(ctx)
			if err != nil {
				m.log.Errorw("health sweep failed", "err", err)
				continue
			}
			m.log.Infow("health sweep completed",
				"checked", sweep.Checked,
				"unhealthy", sweep.Unhealthy,
				"duration_ms", sweep.Duration.Milliseconds(),
			)
		case <-ctx.Done():
			m.log.Infow("health monitor stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep over all records. Per-record apply
// failures are logged and skipped so one deleted or contended record does
// not starve the rest of the sweep.
func (m *Monitor) RunOnce(ctx context.Context) (Sweep, error) {
	start := time.Now()
	recs, err := m.store.List(ctx)
	if err != nil {
		return Sweep{}, err
	}

	var sweep Sweep
	for _, rec := range recs {
		res := m.check(ctx, rec)

		updated, err := m.store.ApplyCheck(ctx, rec.ID, res)
		if err != nil {
			m.log.Warnw("check apply failed", "record", rec.ID, "err", err)
			continue
		}
		outcome := "ok"
		if !res.OK {
			outcome = "failed"
		}
		metrics.HealthChecksTotal.WithLabelValues(rec.PlatformID, outcome).Inc()

		sweep.Checked++
		if updated.Health == credentials.HealthUnhealthy {
			sweep.Unhealthy++
			if rec.Health != credentials.HealthUnhealthy {
				m.log.Warnw("credential went unhealthy",
					"record", rec.ID, "tenant", rec.TenantID,
					"platform", rec.PlatformID, "reason", res.Reason,
				)
			}
		}
	}
	sweep.Duration = time.Since(start)
	return sweep, nil
}

func (m *Monitor) check(ctx context.Context, rec credentials.Record) credentials.CheckResult {
	prov, ok := m.catalog.Get(rec.PlatformID)
	if !ok {
		return credentials.CheckResult{
			CheckedAt: time.Now().UTC(),
			Reason:    "provider missing from catalog",
		}
	}
	return m.prober.Probe(ctx, rec, prov)
}
