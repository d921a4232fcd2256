// internal/upstream/manager.go
package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"edgegate/pkg/config"
	"edgegate/pkg/faults"
	"edgegate/pkg/metrics"
)

// Manager owns the process's outbound HTTP client. It is constructed once at
// the composition root and handed to every upstream consumer, so the bounded
// timeout and connection pool are shared instead of living in a package
// global.
type Manager struct {
	client  *http.Client
	timeout time.Duration
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		client: &http.Client{
			Timeout: cfg.UpstreamTimeout,
		},
		timeout: cfg.UpstreamTimeout,
	}
}

// Client returns the shared outbound client.
func (m *Manager) Client() *http.Client { return m.client }

// Timeout returns the bound applied to outbound calls.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Close releases pooled connections. Called on shutdown.
func (m *Manager) Close() {
	m.client.CloseIdleConnections()
}

// Track records the latency of one upstream call.
func Track(upstream string, start time.Time) {
	metrics.UpstreamLatency.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
}

// Classify maps transport errors to the fault taxonomy: deadline and network
// timeouts become UpstreamTimeout, anything else stays as-is for the caller
// to wrap.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Wrap(faults.UpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return faults.Wrap(faults.UpstreamTimeout, err)
	}
	return err
}
