// internal/oauth/broker.go
package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
	"edgegate/pkg/ledger"
	"edgegate/pkg/metrics"
	"edgegate/pkg/nonce"
)

// ExchangeRequest is the code-for-tokens exchange handed to the auth/secret
// service. The redirect URI must be byte-identical to the one used at
// initiate; providers enforce the match.
type ExchangeRequest struct {
	Provider     string `json:"provider"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// ExchangeResult carries token metadata only; the tokens themselves stay
// with the secret service.
type ExchangeResult struct {
	AccountID string    `json:"account_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Exchanger performs the exchange. It is called at most once per callback:
// a failed exchange is never retried, duplicate codes anger providers.
type Exchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error)
}

// LinkPolicy decides whether a tenant may link a provider at all.
type LinkPolicy interface {
	Allow(ctx context.Context, tenantID, provider, userID string) (bool, []string, error)
}

// DefaultSurface is where callbacks land when no redirect survives decoding.
const DefaultSurface = "/dashboard/integrations"

// Broker drives the two-phase authorize/callback handshake.
type Broker struct {
	codec     *Codec
	nonces    nonce.Store
	catalog   *catalog.Catalog
	exchanger Exchanger
	store     credentials.Store
	recorder  ledger.Recorder
	policy    LinkPolicy
	baseURL   string
	nonceTTL  time.Duration
	log       *zap.SugaredLogger
}

func NewBroker(codec *Codec, nonces nonce.Store, cat *catalog.Catalog, ex Exchanger, store credentials.Store, rec ledger.Recorder, policy LinkPolicy, baseURL string, nonceTTL time.Duration, log *zap.SugaredLogger) *Broker {
	return &Broker{
		codec: codec, nonces: nonces, catalog: cat, exchanger: ex,
		store: store, recorder: rec, policy: policy,
		baseURL: strings.TrimRight(baseURL, "/"), nonceTTL: nonceTTL, log: log,
	}
}

// CallbackURI is the absolute redirect URI registered with providers.
func (b *Broker) CallbackURI() string {
	return b.baseURL + "/v1/integrations/callback"
}

// InitiateInput identifies who is linking what, and where to land after.
type InitiateInput struct {
	TenantID    string
	UserID      string
	Provider    string
	RedirectURL string
}

// Initiate builds the provider authorization URL with a sealed state and a
// registered nonce. The desired redirect must be a relative path; absolute
// URLs would make the callback an open redirect.
func (b *Broker) Initiate(ctx context.Context, in InitiateInput) (string, error) {
	prov, ok := b.catalog.Get(in.Provider)
	if !ok {
		f := faults.Newf(faults.ProviderError, "unknown provider %q", in.Provider)
		f.Status = 404
		return "", f
	}
	redirect := in.RedirectURL
	if redirect == "" {
		redirect = DefaultSurface
	}
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		return "", faults.New(faults.InvalidOAuthState, "redirect_url must be a relative path")
	}
	if b.policy != nil {
		allowed, reasons, err := b.policy.Allow(ctx, in.TenantID, in.Provider, in.UserID)
		if err != nil {
			b.log.Warnw("link policy evaluation failed", "tenant", in.TenantID, "provider", in.Provider, "err", err)
			return "", faults.New(faults.LinkBlocked, "policy evaluation failed")
		}
		if !allowed {
			return "", faults.Newf(faults.LinkBlocked, "blocked by policy: %s", strings.Join(reasons, ", "))
		}
	}

	n := uuid.NewString()
	if err := b.nonces.Put(ctx, n, b.nonceTTL); err != nil {
		return "", err
	}
	sealed, err := b.codec.Encode(State{
		TenantID:    in.TenantID,
		UserID:      in.UserID,
		RedirectURL: redirect,
		Provider:    in.Provider,
		Nonce:       n,
	})
	if err != nil {
		return "", err
	}

	clientID, _ := prov.Creds()
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", b.CallbackURI())
	q.Set("response_type", "code")
	if len(prov.Scopes) > 0 {
		q.Set("scope", strings.Join(prov.Scopes, " "))
	}
	q.Set("state", sealed)
	return prov.AuthorizeURL + "?" + q.Encode(), nil
}

// CallbackInput is what the provider sent back.
type CallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult tells the handler where to send the browser. Err is the
// typed failure for logging; the redirect already carries its kind.
type CallbackResult struct {
	Redirect string
	Provider string
	Err      error
}

// Callback processes the provider's response in a fixed order: provider
// error, parameter presence, state decode, nonce consumption, code
// exchange. The first failed step decides the outcome; the exchange is
// reached at most once.
func (b *Broker) Callback(ctx context.Context, in CallbackInput) CallbackResult {
	if in.Error != "" {
		// Raw provider text is logged, never surfaced to the browser.
		b.log.Warnw("provider returned error", "error", in.Error, "description", in.ErrorDescription)
		return b.failure(DefaultSurface, "", faults.Newf(faults.ProviderError, "provider error %q", in.Error))
	}
	if in.Code == "" || in.State == "" {
		return b.failure(DefaultSurface, "", faults.New(faults.InvalidOAuthState, "missing code or state"))
	}
	st, err := b.codec.Decode(in.State)
	if err != nil {
		return b.failure(DefaultSurface, "", err)
	}

	ok, err := b.nonces.Consume(ctx, st.Nonce)
	if err != nil {
		// Replay protection unavailable: fail closed.
		b.log.Errorw("nonce store unavailable", "err", err)
		return b.failure(st.RedirectURL, st.Provider, faults.New(faults.InvalidOAuthState, "replay check unavailable"))
	}
	if !ok {
		return b.failure(st.RedirectURL, st.Provider, faults.New(faults.InvalidOAuthState, "state already used or expired"))
	}

	prov, found := b.catalog.Get(st.Provider)
	if !found {
		return b.failure(st.RedirectURL, st.Provider, faults.Newf(faults.ProviderError, "unknown provider %q", st.Provider))
	}

	clientID, clientSecret := prov.Creds()
	res, err := b.exchanger.Exchange(ctx, ExchangeRequest{
		Provider:     st.Provider,
		Code:         in.Code,
		RedirectURI:  b.CallbackURI(),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		if !errors.Is(err, faults.UpstreamTimeout) && !errors.Is(err, faults.TokenExchangeFailed) {
			err = faults.Wrap(faults.TokenExchangeFailed, err)
		}
		return b.failure(st.RedirectURL, st.Provider, err)
	}

	if _, err := b.store.Upsert(ctx, credentials.Record{
		TenantID:   st.TenantID,
		PlatformID: st.Provider,
		Source:     credentials.SourceTenant,
		Health:     credentials.HealthUnknown,
		ExpiresAt:  res.ExpiresAt,
	}); err != nil {
		b.log.Errorw("credential upsert after exchange failed", "tenant", st.TenantID, "provider", st.Provider, "err", err)
	}
	if b.recorder != nil {
		if err := b.recorder.Record(ctx, ledger.Event{
			TenantID:   st.TenantID,
			PlatformID: st.Provider,
			Kind:       ledger.KindLinked,
			Source:     credentials.SourceTenant,
			Detail:     map[string]any{"user_id": st.UserID, "account_id": res.AccountID},
		}); err != nil {
			b.log.Warnw("ledger record failed", "kind", ledger.KindLinked, "err", err)
		}
	}

	metrics.OAuthCallbacksTotal.WithLabelValues(st.Provider, "success").Inc()
	return CallbackResult{
		Redirect: appendQuery(st.RedirectURL, url.Values{"success": {"true"}, "provider": {st.Provider}}),
		Provider: st.Provider,
	}
}

// failure maps a fault to the error redirect. The redirect carries the
// fault kind, never the provider's raw text.
func (b *Broker) failure(target, provider string, err error) CallbackResult {
	if target == "" {
		target = DefaultSurface
	}
	kind := string(faults.KindOf(err))
	if kind == "" {
		kind = "ProviderError"
	}
	label := provider
	if label == "" {
		label = "unknown"
	}
	metrics.OAuthCallbacksTotal.WithLabelValues(label, kind).Inc()
	return CallbackResult{
		Redirect: appendQuery(target, url.Values{"error": {kind}}),
		Provider: provider,
		Err:      err,
	}
}

// appendQuery merges params into target, which is a relative path that may
// already carry a query.
func appendQuery(target string, params url.Values) string {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: DefaultSurface}
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
