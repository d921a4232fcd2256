// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgegate",
		Name:      "credential_resolutions_total",
		Help:      "Credential resolution decisions by strategy, chosen source and outcome.",
	}, []string{"strategy", "source", "outcome"})

	FailoversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgegate",
		Name:      "credential_failovers_total",
		Help:      "Hybrid-strategy failovers from tenant to platform credentials.",
	}, []string{"platform"})

	HealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgegate",
		Name:      "credential_health_checks_total",
		Help:      "Credential health probe outcomes.",
	}, []string{"platform", "result"})

	OAuthCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgegate",
		Name:      "oauth_callbacks_total",
		Help:      "OAuth callback outcomes by provider.",
	}, []string{"provider", "outcome"})

	TenantResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgegate",
		Name:      "tenant_resolutions_total",
		Help:      "Tenant resolutions by routing type, unresolved counted as none.",
	}, []string{"routing"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edgegate",
		Name:      "upstream_request_seconds",
		Help:      "Latency of calls to upstream services.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"upstream"})
)
