// pkg/faults/faults.go
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class of the edge/credential subsystem. Kinds are
// stable strings: they travel in redirect query parameters and problem+json
// bodies, so renaming one is a wire change.
type Kind string

const (
	KindTenantNotResolved     Kind = "TenantNotResolved"
	KindUnauthenticated       Kind = "Unauthenticated"
	KindNotOnboarded          Kind = "NotOnboarded"
	KindInvalidOAuthState     Kind = "InvalidOAuthState"
	KindProviderError         Kind = "ProviderError"
	KindTokenExchangeFailed   Kind = "TokenExchangeFailed"
	KindCredentialUnavailable Kind = "CredentialUnavailable"
	KindQuotaExhausted        Kind = "QuotaExhausted"
	KindUpstreamTimeout       Kind = "UpstreamTimeout"
	KindLinkBlocked           Kind = "LinkBlocked"
)

// Fault is a typed failure. Two faults match under errors.Is when their kinds
// are equal, so callers compare against the package sentinels regardless of
// how a fault was wrapped or re-messaged along the way.
type Fault struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

var (
	TenantNotResolved     = &Fault{Kind: KindTenantNotResolved, Message: "no tenant matches this request", Status: http.StatusNotFound}
	Unauthenticated       = &Fault{Kind: KindUnauthenticated, Message: "a valid session is required", Status: http.StatusUnauthorized}
	NotOnboarded          = &Fault{Kind: KindNotOnboarded, Message: "tenant onboarding is not complete", Status: http.StatusForbidden}
	InvalidOAuthState     = &Fault{Kind: KindInvalidOAuthState, Message: "oauth state is missing, malformed or already used", Status: http.StatusBadRequest}
	ProviderError         = &Fault{Kind: KindProviderError, Message: "the integration provider reported an error", Status: http.StatusBadGateway}
	TokenExchangeFailed   = &Fault{Kind: KindTokenExchangeFailed, Message: "authorization code exchange failed", Status: http.StatusBadGateway}
	CredentialUnavailable = &Fault{Kind: KindCredentialUnavailable, Message: "no usable credential under the configured strategy", Status: http.StatusConflict}
	QuotaExhausted        = &Fault{Kind: KindQuotaExhausted, Message: "selected credential has no remaining quota", Status: http.StatusTooManyRequests}
	UpstreamTimeout       = &Fault{Kind: KindUpstreamTimeout, Message: "upstream call exceeded its deadline", Status: http.StatusGatewayTimeout}
	LinkBlocked           = &Fault{Kind: KindLinkBlocked, Message: "provider linking is blocked for this tenant", Status: http.StatusForbidden}
)

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is reports kind equality so errors.Is(err, faults.QuotaExhausted) works on
// wrapped and re-messaged faults alike.
func (f *Fault) Is(target error) bool {
	var t *Fault
	if !errors.As(target, &t) {
		return false
	}
	return f.Kind == t.Kind
}

// New derives a fault of the same kind with a specific message.
func New(base *Fault, msg string) *Fault {
	return &Fault{Kind: base.Kind, Message: msg, Status: base.Status}
}

// Newf is New with formatting.
func Newf(base *Fault, format string, args ...any) *Fault {
	return New(base, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a fault kind, keeping the base status and message.
func Wrap(base *Fault, err error) *Fault {
	return &Fault{Kind: base.Kind, Message: base.Message, Status: base.Status, Err: err}
}

// KindOf extracts the kind of err, or "" when err carries no fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// StatusOf maps err to an HTTP status, defaulting to 500 for unclassified
// errors.
func StatusOf(err error) int {
	var f *Fault
	if errors.As(err, &f) && f.Status != 0 {
		return f.Status
	}
	return http.StatusInternalServerError
}
