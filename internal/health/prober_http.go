// internal/health/prober_http.go
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"edgegate/internal/upstream"
	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
)

// Prober validates one credential against its provider and reports what it
// saw. Implementations never mutate the record; the store does that when the
// result is applied.
type Prober interface {
	Probe(ctx context.Context, rec credentials.Record, prov catalog.Provider) credentials.CheckResult
}

// HTTPProber asks the credential verify service about a record and reads
// quota and expiry out of the provider-shaped response with the catalog's
// JMESPath expressions.
type HTTPProber struct {
	verifyURL string
	mgr       *upstream.Manager
	backoff   time.Duration
	log       *zap.SugaredLogger
}

func NewHTTPProber(verifyURL string, mgr *upstream.Manager, log *zap.SugaredLogger) *HTTPProber {
	return &HTTPProber{verifyURL: verifyURL, mgr: mgr, backoff: 500 * time.Millisecond, log: log}
}

type verifyRequest struct {
	RecordID   string `json:"record_id"`
	TenantID   string `json:"tenant_id,omitempty"`
	PlatformID string `json:"platform_id"`
	Source     string `json:"source"`
}

func (p *HTTPProber) Probe(ctx context.Context, rec credentials.Record, prov catalog.Provider) credentials.CheckResult {
	res := credentials.CheckResult{CheckedAt: time.Now().UTC()}

	payload, status, latency, err := p.fetch(ctx, rec)
	res.Latency = latency
	if err != nil {
		res.Reason = "verify unreachable"
		if errors.Is(err, faults.UpstreamTimeout) {
			res.Reason = "verify timeout"
		}
		p.log.Warnw("credential check failed", "record", rec.ID, "platform", rec.PlatformID, "err", err)
		return res
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		res.Reason = "invalid credential"
		return res
	}
	if status < 200 || status >= 300 {
		res.Reason = fmt.Sprintf("verify status %d", status)
		return res
	}

	valid, err := jmes.Search(prov.ValidExpr, payload)
	if err != nil || !truthy(valid) {
		res.Reason = "provider reports invalid"
		return res
	}
	res.OK = true
	if v, err := jmes.Search(prov.QuotaExpr, payload); err == nil {
		res.QuotaRemaining = int64(toFloat(v))
	}
	if v, err := jmes.Search(prov.ExpiresExpr, payload); err == nil && v != nil {
		if ts, terr := toTime(v); terr == nil {
			res.ExpiresAt = ts
		}
	}
	return res
}

// fetch performs the verify call. The read is idempotent, so a timeout gets
// exactly one more try after a short backoff; any other failure does not.
func (p *HTTPProber) fetch(ctx context.Context, rec credentials.Record) (map[string]any, int, time.Duration, error) {
	payload, status, latency, err := p.once(ctx, rec)
	if err == nil || !errors.Is(err, faults.UpstreamTimeout) {
		return payload, status, latency, err
	}

	select {
	case <-time.After(p.backoff):
	case <-ctx.Done():
		return nil, 0, latency, upstream.Classify(ctx.Err())
	}
	return p.once(ctx, rec)
}

func (p *HTTPProber) once(ctx context.Context, rec credentials.Record) (map[string]any, int, time.Duration, error) {
	body, err := json.Marshal(verifyRequest{
		RecordID:   rec.ID,
		TenantID:   rec.TenantID,
		PlatformID: rec.PlatformID,
		Source:     string(rec.Source),
	})
	if err != nil {
		return nil, 0, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.mgr.Timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.mgr.Client().Do(req)
	latency := time.Since(start)
	upstream.Track("credential_verify", start)
	if err != nil {
		return nil, 0, latency, upstream.Classify(err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, resp.StatusCode, latency, fmt.Errorf("verify response decode: %w", err)
		}
	}
	return payload, resp.StatusCode, latency, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	default:
		return false
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, nil
		}
		return time.Parse("2006-01-02", t)
	case float64:
		// Unix seconds, the other shape verify backends send.
		return time.Unix(int64(t), 0).UTC(), nil
	default:
		return time.Time{}, errors.New("unsupported time type")
	}
}
