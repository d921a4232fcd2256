// internal/guard/guard.go
package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"edgegate/pkg/faults"
	"edgegate/pkg/middleware"
	"edgegate/pkg/problems"
)

// State is the guard's view of the caller.
type State string

const (
	StateAnonymous    State = "anonymous"
	StateNotOnboarded State = "not_onboarded"
	StateOnboarded    State = "onboarded"
)

// Session is the verified session as reported by the session service. Tokens
// are opaque here: forwarded, never inspected.
type Session struct {
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	Role         string    `json:"role"`
	Onboarded    bool      `json:"onboarded"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Verifier checks a session token against the source of truth. The guard
// never trusts cookie presence alone.
type Verifier interface {
	VerifySession(ctx context.Context, token string) (Session, error)
}

// SessionCookie carries the opaque session token in browsers.
const SessionCookie = "edgegate_session"

// Redirect targets.
const (
	PathLogin      = "/login"
	PathOnboarding = "/onboarding"
	PathDashboard  = "/dashboard"
)

// Group classifies a route for the policy table.
type Group string

const (
	GroupPublic     Group = "public"
	GroupOnboarding Group = "onboarding"
	GroupDashboard  Group = "dashboard"
	// GroupNeutral routes bypass the guard entirely: health, metrics,
	// discovery and the OAuth callback, which authenticates via state.
	GroupNeutral Group = "neutral"
)

// cell is one policy decision: either allow, or redirect. A non-nil fault
// marks the redirect as a privilege failure so API callers get the typed
// error instead of a 302.
type cell struct {
	allow    bool
	redirect string
	fault    *faults.Fault
}

// policy is the route-group × session-state table. Every state change in
// guard behavior happens here, not in scattered branches.
var policy = map[Group]map[State]cell{
	GroupPublic: {
		StateAnonymous:    {allow: true},
		StateNotOnboarded: {redirect: PathOnboarding},
		StateOnboarded:    {redirect: PathDashboard},
	},
	GroupOnboarding: {
		StateAnonymous:    {redirect: PathLogin, fault: faults.Unauthenticated},
		StateNotOnboarded: {allow: true},
		StateOnboarded:    {redirect: PathDashboard},
	},
	GroupDashboard: {
		StateAnonymous:    {redirect: PathLogin, fault: faults.Unauthenticated},
		StateNotOnboarded: {redirect: PathOnboarding, fault: faults.NotOnboarded},
		StateOnboarded:    {allow: true},
	},
}

// Route maps a path prefix to a group.
type Route struct {
	Prefix string
	Group  Group
}

// DefaultRoutes is the edge service's route classification. Unmatched paths
// are public.
func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/healthz", Group: GroupNeutral},
		{Prefix: "/metrics", Group: GroupNeutral},
		{Prefix: "/.well-known", Group: GroupNeutral},
		{Prefix: "/v1/integrations/callback", Group: GroupNeutral},
		{Prefix: "/v1/integrations", Group: GroupDashboard},
		{Prefix: "/login", Group: GroupPublic},
		{Prefix: "/register", Group: GroupPublic},
		{Prefix: "/onboarding", Group: GroupOnboarding},
		{Prefix: "/dashboard", Group: GroupDashboard},
		{Prefix: "/app", Group: GroupDashboard},
		{Prefix: "/settings", Group: GroupDashboard},
	}
}

// Guard evaluates the policy table per request.
type Guard struct {
	verifier Verifier
	routes   []Route
	log      *zap.SugaredLogger
}

func New(verifier Verifier, routes []Route, log *zap.SugaredLogger) *Guard {
	return &Guard{verifier: verifier, routes: routes, log: log}
}

// Classify returns the group for a path, longest prefix winning.
func (g *Guard) Classify(path string) Group {
	best, bestLen := GroupPublic, -1
	for _, rt := range g.routes {
		if !prefixMatch(path, rt.Prefix) {
			continue
		}
		if len(rt.Prefix) > bestLen {
			best, bestLen = rt.Group, len(rt.Prefix)
		}
	}
	return best
}

func prefixMatch(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/' || strings.HasSuffix(prefix, "/")
}

// StateFor verifies the caller's token and maps it to a guard state. Any
// verification error fails closed to Anonymous; sessions belonging to a
// different tenant than the resolved one are rejected the same way.
func (g *Guard) StateFor(r *http.Request) (State, Session) {
	token := tokenFrom(r)
	if token == "" {
		return StateAnonymous, Session{}
	}
	sess, err := g.verifier.VerifySession(r.Context(), token)
	if err != nil {
		g.log.Warnw("session verify failed", "err", err)
		return StateAnonymous, Session{}
	}
	if tenant := middleware.TenantFrom(r.Context()); tenant.ID != "" && sess.TenantID != "" && sess.TenantID != tenant.ID {
		g.log.Warnw("cross-tenant session rejected", "session_tenant", sess.TenantID, "resolved_tenant", tenant.ID)
		return StateAnonymous, Session{}
	}
	if sess.Onboarded {
		return StateOnboarded, sess
	}
	return StateNotOnboarded, sess
}

// Middleware enforces the policy table. Browser traffic gets redirects that
// carry the original path in return_to; API traffic gets the typed problem.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			group := g.Classify(r.URL.Path)
			if group == GroupNeutral {
				next.ServeHTTP(w, r)
				return
			}
			state, sess := g.StateFor(r)
			c := policy[group][state]
			if c.allow {
				ctx := r.Context()
				if state != StateAnonymous {
					ctx = WithSession(ctx, sess)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if c.fault != nil && wantsJSON(r) {
				problems.Render(w, c.fault)
				return
			}
			http.Redirect(w, r, withReturnTo(c.redirect, r), http.StatusFound)
		})
	}
}

// withReturnTo appends the originally requested path (and query) so the
// target can send the caller back after login or onboarding.
func withReturnTo(target string, r *http.Request) string {
	original := r.URL.Path
	if r.URL.RawQuery != "" {
		original += "?" + r.URL.RawQuery
	}
	v := url.Values{"return_to": {original}}
	return target + "?" + v.Encode()
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return ""
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/v1/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

type ctxSessionKey struct{}

// WithSession stores the verified session on the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

// SessionFrom returns the verified session, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	if v := ctx.Value(ctxSessionKey{}); v != nil {
		return v.(Session), true
	}
	return Session{}, false
}
