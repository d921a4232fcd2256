// internal/guard/stub.go
package guard

import (
	"context"
	"strings"
	"time"

	"edgegate/pkg/faults"
)

// StubVerifier fabricates sessions from the token itself so the edge can be
// exercised without a session service. It is wired only when EDGEGATE_ENV is
// dev and DEV_FAKE_SESSIONS is set; the production composition never
// constructs it. Token format: "user:tenant[:onboarded]".
type StubVerifier struct{}

func (StubVerifier) VerifySession(ctx context.Context, token string) (Session, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Session{}, faults.New(faults.Unauthenticated, "stub token must be user:tenant[:onboarded]")
	}
	return Session{
		UserID:    parts[0],
		TenantID:  parts[1],
		Role:      "owner",
		Onboarded: len(parts) > 2 && parts[2] == "onboarded",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}
