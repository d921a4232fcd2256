// pkg/middleware/scope.go
package middleware

import (
	"context"
	"net/http"
)

type scopeCtxKey struct{}

// WithScopes stores the caller's granted scopes on the context.
func WithScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopeCtxKey{}, scopes)
}

// ScopesFrom returns the scopes granted to the current caller.
func ScopesFrom(ctx context.Context) []string {
	if v := ctx.Value(scopeCtxKey{}); v != nil {
		if s, ok := v.([]string); ok {
			return s
		}
	}
	return nil
}

// RequireScope gates a route group on a scope granted by InternalAuth. The
// wildcard "*" grant, used by the dev fallback, satisfies any requirement.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if scope != "" && !HasAnyScope(r.Context(), []string{scope}) {
				http.Error(w, "insufficient_scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasAnyScope reports whether the caller holds at least one of the required
// scopes, or the wildcard.
func HasAnyScope(ctx context.Context, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := map[string]struct{}{}
	for _, s := range ScopesFrom(ctx) {
		set[s] = struct{}{}
	}
	if _, ok := set["*"]; ok {
		return true
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
