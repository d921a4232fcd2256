// pkg/middleware/apiauth.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"edgegate/pkg/config"
)

// jwksCache caches JWKS sets per URL.
type jwksCache struct {
	mu   sync.RWMutex
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]cachedJWKS{}
	}
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(ttl)}
	return set, nil
}

type ctxCallerKey struct{}

// Caller identifies who is driving an internal API request. TenantID is
// empty for platform operators; tenant-scoped tokens carry their tenant in
// the tid claim.
type Caller struct {
	Subject  string
	TenantID string
}

// InternalAuth validates bearer tokens on the credential service's internal
// API. With no ADMIN_JWKS_URL configured, dev falls back to trusting the
// X-Tenant-ID header so local bring-up needs no issuer; prod fails closed.
func InternalAuth(cfg config.Config) func(http.Handler) http.Handler {
	cache := &jwksCache{}
	jwksTTL := 6 * time.Hour
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/.well-known/") {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.AdminJWKSURL == "" {
				if cfg.Env == "dev" {
					caller := Caller{Subject: "dev", TenantID: strings.TrimSpace(r.Header.Get("X-Tenant-ID"))}
					ctx := context.WithValue(r.Context(), ctxCallerKey{}, caller)
					next.ServeHTTP(w, r.WithContext(WithScopes(ctx, []string{"*"})))
					return
				}
				http.Error(w, "auth not configured", http.StatusInternalServerError)
				return
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			set, err := cache.get(r.Context(), cfg.AdminJWKSURL, jwksTTL)
			if err != nil {
				http.Error(w, "jwks fetch failed", http.StatusInternalServerError)
				return
			}

			parseOpts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true), jwt.WithVerify(true), jwt.WithAcceptableSkew(60 * time.Second)}
			if cfg.AdminIssuer != "" {
				parseOpts = append(parseOpts, jwt.WithIssuer(strings.TrimRight(cfg.AdminIssuer, "/")))
			}
			if cfg.AdminAudience != "" {
				parseOpts = append(parseOpts, jwt.WithAudience(cfg.AdminAudience))
			}
			jt, perr := jwt.Parse([]byte(raw), parseOpts...)
			if perr != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			caller := Caller{Subject: jt.Subject()}
			if tid, ok := jt.Get("tid"); ok {
				caller.TenantID, _ = tid.(string)
			}
			ctx := context.WithValue(r.Context(), ctxCallerKey{}, caller)
			if sc, ok := jt.Get("scope"); ok {
				if s, ok := sc.(string); ok {
					ctx = WithScopes(ctx, strings.Fields(s))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the authenticated caller of an internal API request.
func CallerFrom(ctx context.Context) (Caller, bool) {
	if v := ctx.Value(ctxCallerKey{}); v != nil {
		return v.(Caller), true
	}
	return Caller{}, false
}
