// internal/guard/verifier_http.go
package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"edgegate/internal/upstream"
	"edgegate/pkg/faults"
)

// HTTPVerifier asks the session service whether a token is valid. It is the
// production Verifier.
type HTTPVerifier struct {
	base   string
	client *http.Client
}

func NewHTTPVerifier(baseURL string, client *http.Client) *HTTPVerifier {
	return &HTTPVerifier{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (v *HTTPVerifier) VerifySession(ctx context.Context, token string) (Session, error) {
	start := time.Now()
	defer upstream.Track("session_verify", start)

	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.base+"/v1/sessions/verify", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Session{}, upstream.Classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var s Session
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return Session{}, fmt.Errorf("session verify decode: %w", err)
		}
		return s, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Session{}, faults.New(faults.Unauthenticated, "session rejected by verifier")
	default:
		return Session{}, fmt.Errorf("session verify: unexpected status %d", resp.StatusCode)
	}
}
