package problems

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"edgegate/pkg/faults"
)

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. BASE_PUBLIC_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

var slugs = map[faults.Kind]string{
	faults.KindTenantNotResolved:     "tenant-not-resolved",
	faults.KindUnauthenticated:       "unauthenticated",
	faults.KindNotOnboarded:          "not-onboarded",
	faults.KindInvalidOAuthState:     "invalid-oauth-state",
	faults.KindProviderError:         "provider-error",
	faults.KindTokenExchangeFailed:   "token-exchange-failed",
	faults.KindCredentialUnavailable: "credential-unavailable",
	faults.KindQuotaExhausted:        "quota-exhausted",
	faults.KindUpstreamTimeout:       "upstream-timeout",
	faults.KindLinkBlocked:           "link-blocked",
}

// Slug maps a fault kind to its problem slug, e.g. TenantNotResolved to
// tenant-not-resolved.
func Slug(k faults.Kind) string {
	if s, ok := slugs[k]; ok {
		return s
	}
	return strings.ToLower(string(k))
}

// Render writes err as application/problem+json. Faults map to their kind
// slug and status; anything else becomes a generic internal problem.
func Render(w http.ResponseWriter, err error) {
	var f *faults.Fault
	if !errors.As(err, &f) {
		f = &faults.Fault{Kind: "Internal", Message: "internal error", Status: http.StatusInternalServerError}
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   Type(Slug(f.Kind)),
		"title":  string(f.Kind),
		"status": f.Status,
		"detail": f.Message,
	})
}
