// internal/linkpolicy/linkpolicy.go
package linkpolicy

import (
	"context"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// SourceStore holds per-tenant link policy sources. A tenant without a
// source may link any provider.
type SourceStore interface {
	PolicySource(ctx context.Context, tenantID string) (string, error)
	SetPolicy(ctx context.Context, tenantID, source string) error
	RemovePolicy(ctx context.Context, tenantID string) error
}

// Service evaluates tenant link policies at OAuth initiate. The rego
// entrypoint is data.edgegate.link.decide and is expected to produce
// {allow: bool, reasons: [...]}.
type Service struct {
	sources SourceStore
	log     *zap.SugaredLogger
}

func NewService(sources SourceStore, log *zap.SugaredLogger) *Service {
	return &Service{sources: sources, log: log}
}

// Allow reports whether the tenant may link the provider. Storage errors
// propagate; evaluation errors block with a policy_error reason rather than
// letting a broken policy grant access.
func (s *Service) Allow(ctx context.Context, tenantID, provider, userID string) (bool, []string, error) {
	src, err := s.sources.PolicySource(ctx, tenantID)
	if err != nil {
		return false, nil, err
	}
	if src == "" {
		return true, nil, nil
	}

	r := rego.New(
		rego.Query("data.edgegate.link.decide"),
		rego.Module("link.rego", src),
		rego.Input(map[string]any{
			"tenant_id": tenantID,
			"provider":  provider,
			"user_id":   userID,
		}),
	)
	rs, err := r.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		s.log.Warnw("link policy evaluation error", "tenant", tenantID, "err", err)
		return false, []string{"policy_error"}, nil
	}

	switch out := rs[0].Expressions[0].Value.(type) {
	case bool:
		return out, nil, nil
	case map[string]any:
		allow, _ := out["allow"].(bool)
		var reasons []string
		if raw, ok := out["reasons"].([]any); ok {
			for _, v := range raw {
				if str, ok := v.(string); ok {
					reasons = append(reasons, str)
				}
			}
		}
		return allow, reasons, nil
	default:
		s.log.Warnw("link policy produced unexpected shape", "tenant", tenantID)
		return false, []string{"policy_error"}, nil
	}
}
