// internal/oauth/handlers.go
package oauth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"edgegate/internal/guard"
	"edgegate/pkg/faults"
	"edgegate/pkg/middleware"
	"edgegate/pkg/problems"
)

// Handlers exposes the broker over HTTP on the edge service.
type Handlers struct {
	broker *Broker
	log    *zap.SugaredLogger
}

func NewHandlers(broker *Broker, log *zap.SugaredLogger) *Handlers {
	return &Handlers{broker: broker, log: log}
}

// Mount attaches the oauth routes. The connect route sits behind the guard;
// the callback is neutral and validates via state instead.
func (h *Handlers) Mount(r chi.Router) {
	r.Post("/v1/integrations/{provider}/connect", h.initiate)
	r.Get("/v1/integrations/callback", h.callback)
	r.Post("/v1/integrations/callback", h.callback)
}

func (h *Handlers) initiate(w http.ResponseWriter, r *http.Request) {
	sess, ok := guard.SessionFrom(r.Context())
	if !ok {
		problems.Render(w, faults.Unauthenticated)
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	if tenant.ID == "" {
		problems.Render(w, faults.TenantNotResolved)
		return
	}

	var body struct {
		RedirectURL string `json:"redirect_url"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	authorizeURL, err := h.broker.Initiate(r.Context(), InitiateInput{
		TenantID:    tenant.ID,
		UserID:      sess.UserID,
		Provider:    chi.URLParam(r, "provider"),
		RedirectURL: body.RedirectURL,
	})
	if err != nil {
		h.log.Warnw("oauth initiate failed", "tenant", tenant.ID, "provider", chi.URLParam(r, "provider"), "err", err)
		problems.Render(w, err)
		return
	}
	writeJSON(w, map[string]any{"authorize_url": authorizeURL}, http.StatusOK)
}

func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
	}
	in := CallbackInput{
		Code:             param(r, "code"),
		State:            param(r, "state"),
		Error:            param(r, "error"),
		ErrorDescription: param(r, "error_description"),
	}
	res := h.broker.Callback(r.Context(), in)
	if res.Err != nil {
		h.log.Warnw("oauth callback failed", "provider", res.Provider, "kind", faults.KindOf(res.Err), "err", res.Err)
	} else {
		h.log.Infow("oauth link established", "provider", res.Provider)
	}
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

// param reads a value from the query or, for POST callbacks, the form body.
func param(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return r.PostFormValue(key)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
