// internal/credential/admin.go
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"edgegate/pkg/catalog"
	"edgegate/pkg/credentials"
	"edgegate/pkg/faults"
	"edgegate/pkg/ledger"
	"edgegate/pkg/problems"
	"edgegate/pkg/tenants"
)

// Admin is the operator surface: configure and remove credential records and
// change a tenant's strategy. Raw secret material is sealed on intake and
// forwarded only to the secret service; this store keeps ciphertext and
// metadata.
type Admin struct {
	store    credentials.Store
	catalog  *catalog.Catalog
	tenants  tenants.Provider
	recorder ledger.Recorder
	sealKey  []byte
	log      *zap.SugaredLogger
}

func NewAdmin(store credentials.Store, cat *catalog.Catalog, tp tenants.Provider, rec ledger.Recorder, sealKey string, log *zap.SugaredLogger) *Admin {
	a := &Admin{store: store, catalog: cat, tenants: tp, recorder: rec, log: log}
	if sealKey != "" {
		a.sealKey = []byte(sealKey)
	}
	return a
}

func (a *Admin) Mount(r chi.Router) {
	r.Get("/v1/admin/credentials", a.list)
	r.Post("/v1/admin/credentials", a.upsert)
	r.Delete("/v1/admin/credentials/{id}", a.remove)
	r.Put("/v1/admin/tenants/{tenant}/strategy", a.setStrategy)
}

func (a *Admin) list(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	recs, err := a.store.ListByTenant(r.Context(), tenantID)
	if err != nil {
		problems.Render(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": recs}, http.StatusOK)
}

// credentialBody is the intake payload. Secrets are optional on update;
// absent secrets leave the stored ciphertext untouched.
type credentialBody struct {
	TenantID       string            `json:"tenant_id"`
	PlatformID     string            `json:"platform_id"`
	Source         string            `json:"source"`
	QuotaRemaining int64             `json:"quota_remaining"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Secrets        map[string]string `json:"secrets"`
}

func (a *Admin) upsert(w http.ResponseWriter, r *http.Request) {
	var b credentialBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "malformed credential payload"))
		return
	}
	if b.PlatformID == "" {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "platform_id is required"))
		return
	}
	if _, ok := a.catalog.Get(b.PlatformID); !ok {
		problems.Render(w, faults.Newf(faults.CredentialUnavailable, "unknown platform %q", b.PlatformID))
		return
	}
	source := credentials.SourceTenant
	if b.Source == string(credentials.SourcePlatform) {
		source = credentials.SourcePlatform
		// Platform-owned records carry no tenant id.
		b.TenantID = ""
	} else if b.TenantID == "" {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "tenant_id is required for tenant credentials"))
		return
	}

	rec := credentials.Record{
		TenantID:       b.TenantID,
		PlatformID:     b.PlatformID,
		Source:         source,
		Health:         credentials.HealthUnknown,
		QuotaRemaining: b.QuotaRemaining,
		ExpiresAt:      b.ExpiresAt,
	}
	if len(b.Secrets) > 0 {
		sealed, err := a.sealJSON(b.Secrets)
		if err != nil {
			problems.Render(w, err)
			return
		}
		rec.SecretEncrypted = sealed
	} else if prev, err := a.store.Find(r.Context(), b.TenantID, b.PlatformID, source); err == nil {
		rec.SecretEncrypted = prev.SecretEncrypted
	}

	out, err := a.store.Upsert(r.Context(), rec)
	if err != nil {
		problems.Render(w, err)
		return
	}
	if a.recorder != nil {
		if err := a.recorder.Record(r.Context(), ledger.Event{
			TenantID:   out.TenantID,
			PlatformID: out.PlatformID,
			Kind:       ledger.KindIntake,
			Source:     out.Source,
		}); err != nil {
			a.log.Warnw("ledger record failed", "kind", ledger.KindIntake, "err", err)
		}
	}
	a.log.Infow("credential configured", "tenant", out.TenantID, "platform", out.PlatformID, "source", out.Source)
	writeJSON(w, map[string]any{"ok": true, "id": out.ID}, http.StatusCreated)
}

func (a *Admin) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			problems.Render(w, faults.Newf(faults.CredentialUnavailable, "no credential %q", id))
			return
		}
		problems.Render(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (a *Admin) setStrategy(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "malformed strategy payload"))
		return
	}
	strategy, ok := credentials.ParseStrategy(b.Strategy)
	if !ok {
		problems.Render(w, faults.Newf(faults.CredentialUnavailable, "unknown strategy %q", b.Strategy))
		return
	}
	setter, ok := a.tenants.(tenants.StrategySetter)
	if !ok {
		problems.Render(w, faults.New(faults.CredentialUnavailable, "tenant provider cannot persist strategy changes"))
		return
	}

	tenantID := chi.URLParam(r, "tenant")
	if err := setter.SetStrategy(r.Context(), tenantID, strategy); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			problems.Render(w, faults.Newf(faults.TenantNotResolved, "unknown tenant %q", tenantID))
			return
		}
		problems.Render(w, err)
		return
	}
	a.log.Infow("tenant strategy changed", "tenant", tenantID, "strategy", strategy)
	writeJSON(w, map[string]any{"ok": true, "strategy": strategy}, http.StatusOK)
}

// sealJSON encrypts v with GCM when a seal key is configured, else stores
// plain JSON.
func (a *Admin) sealJSON(v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(a.sealKey) == 0 {
		return plain, nil
	}
	h := sha256.Sum256(a.sealKey)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}
