// pkg/ledger/http.go
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// httpRecorder forwards events to the external billing ledger service.
type httpRecorder struct {
	base   string
	client *http.Client
}

// NewHTTPRecorder forwards to BILLING_LEDGER_URL. The client is the shared
// upstream client owned by the composition root.
func NewHTTPRecorder(baseURL string, client *http.Client) Recorder {
	return &httpRecorder{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (h *httpRecorder) Record(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger: unexpected status %d", resp.StatusCode)
	}
	return nil
}
