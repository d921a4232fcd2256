// internal/oauth/exchanger_http.go
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edgegate/internal/upstream"
	"edgegate/pkg/faults"
)

// HTTPExchanger hands the authorization code to the auth/secret service,
// which performs the provider exchange and keeps the tokens.
type HTTPExchanger struct {
	base   string
	client *http.Client
}

func NewHTTPExchanger(baseURL string, client *http.Client) *HTTPExchanger {
	return &HTTPExchanger{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (e *HTTPExchanger) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	start := time.Now()
	defer upstream.Track("token_exchange", start)

	body, err := json.Marshal(req)
	if err != nil {
		return ExchangeResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/v1/oauth/exchange", bytes.NewReader(body))
	if err != nil {
		return ExchangeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		err = upstream.Classify(err)
		if !errors.Is(err, faults.UpstreamTimeout) {
			err = faults.Wrap(faults.TokenExchangeFailed, err)
		}
		return ExchangeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return ExchangeResult{}, faults.Wrap(faults.TokenExchangeFailed,
			fmt.Errorf("exchange status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	var out ExchangeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ExchangeResult{}, faults.Wrap(faults.TokenExchangeFailed, err)
	}
	return out, nil
}
