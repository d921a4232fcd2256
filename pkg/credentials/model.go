// pkg/credentials/model.go
package credentials

import (
	"strings"
	"time"
)

// Strategy is the tenant-level credential policy. It is configuration read by
// the resolution engine, never written by it.
type Strategy string

const (
	StrategyBYOK            Strategy = "BYOK"
	StrategyPlatformManaged Strategy = "PLATFORM_MANAGED"
	StrategyHybrid          Strategy = "HYBRID"
	StrategyAutoResolve     Strategy = "AUTO_RESOLVE"
)

// ParseStrategy normalizes s to a known strategy. Empty input falls back to
// PLATFORM_MANAGED so a freshly created tenant works before any key setup.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case StrategyBYOK:
		return StrategyBYOK, true
	case StrategyPlatformManaged, "":
		return StrategyPlatformManaged, true
	case StrategyHybrid:
		return StrategyHybrid, true
	case StrategyAutoResolve:
		return StrategyAutoResolve, true
	}
	return StrategyPlatformManaged, false
}

// Source identifies who owns a credential.
type Source string

const (
	SourceTenant   Source = "tenant"
	SourcePlatform Source = "platform"
)

// Health of a credential as observed by the monitor. Records start unknown
// and stay that way until their first check completes.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown   Health = "unknown"
)

// CheckStats is a rolling summary of recent check outcomes, used as the
// tie-breaker in auto resolution.
type CheckStats struct {
	SuccessRate float64 `json:"success_rate"`
	LatencyMS   float64 `json:"latency_ms"`
}

// Record is one credential known to the platform. TenantID is empty for
// platform-owned records shared across tenants. SecretEncrypted holds the
// sealed key material and never leaves the service in responses.
type Record struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id,omitempty"`
	PlatformID      string     `json:"platform_id"`
	Source          Source     `json:"source"`
	Strategy        Strategy   `json:"strategy,omitempty"`
	Health          Health     `json:"health_status"`
	QuotaRemaining  int64      `json:"quota_remaining"`
	ExpiresAt       time.Time  `json:"expires_at,omitempty"`
	LastCheckedAt   time.Time  `json:"last_checked_at,omitempty"`
	Stats           CheckStats `json:"stats"`
	SecretEncrypted []byte     `json:"-"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
}

// CheckResult is the outcome of one validity probe against the provider.
type CheckResult struct {
	CheckedAt      time.Time
	OK             bool
	QuotaRemaining int64
	ExpiresAt      time.Time
	Latency        time.Duration
	Reason         string
}

// Usable reports whether the record can serve a call right now.
func (r Record) Usable() bool { return r.Health == HealthHealthy }

// Expired reports whether the record's expiry has passed at the given time.
// A zero ExpiresAt means the credential does not expire.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

const ewmaAlpha = 0.2

// apply folds one check result into the record: quota and expiry refresh on
// success, the outcome history updates either way, and health is recomputed
// so the record is never left stale past the check that observed the problem.
func (r *Record) apply(res CheckResult) {
	first := r.LastCheckedAt.IsZero()
	r.LastCheckedAt = res.CheckedAt
	if res.OK {
		r.QuotaRemaining = res.QuotaRemaining
		if !res.ExpiresAt.IsZero() {
			r.ExpiresAt = res.ExpiresAt
		}
	}

	outcome := 0.0
	if res.OK {
		outcome = 1.0
	}
	if first {
		r.Stats.SuccessRate = outcome
	} else {
		r.Stats.SuccessRate = ewmaAlpha*outcome + (1-ewmaAlpha)*r.Stats.SuccessRate
	}
	if res.Latency > 0 {
		ms := float64(res.Latency) / float64(time.Millisecond)
		if r.Stats.LatencyMS == 0 {
			r.Stats.LatencyMS = ms
		} else {
			r.Stats.LatencyMS = ewmaAlpha*ms + (1-ewmaAlpha)*r.Stats.LatencyMS
		}
	}

	switch {
	case !res.OK:
		r.Health = HealthUnhealthy
	case r.QuotaRemaining <= 0:
		r.Health = HealthUnhealthy
	case r.Expired(res.CheckedAt):
		r.Health = HealthUnhealthy
	default:
		r.Health = HealthHealthy
	}
}
