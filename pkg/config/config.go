// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env            string
	HTTPAddr       string // edge-service
	CredentialAddr string // credential-service

	// Public origin used when building absolute OAuth callback URLs.
	BasePublicURL string

	// Tenant resolution
	DefaultTenantID string

	// Upstream endpoints
	SessionVerifyURL    string
	TokenExchangeURL    string
	CredentialVerifyURL string
	BillingLedgerURL    string

	// OAuth state sealing. Empty in dev means a random per-process key.
	StateEncryptionKey string
	NonceTTL           time.Duration

	// Admin secret intake sealing. Empty means intake payloads are stored
	// as plain JSON, acceptable only in dev.
	SecretSealKey string

	// Credential health monitor
	HealthPollInterval time.Duration
	UpstreamTimeout    time.Duration

	// Cost estimator: minimum savings before a switch is recommended.
	SavingsThresholdPct float64

	// Provider catalog overlay directory (optional)
	ProviderRegistryDir string

	// Internal API auth for credential-service (optional; dev header auth when unset)
	AdminIssuer   string
	AdminJWKSURL  string
	AdminAudience string

	// Dev-only stub sessions, honored only when Env == "dev".
	DevFakeSessions bool

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                 env("EDGEGATE_ENV", "dev"),
		HTTPAddr:            env("EDGEGATE_HTTP_ADDR", ":8080"),
		CredentialAddr:      env("EDGEGATE_CREDENTIAL_ADDR", ":8084"),
		BasePublicURL:       env("BASE_PUBLIC_URL", "http://localhost:8080"),
		DefaultTenantID:     env("DEFAULT_TENANT_ID", ""),
		SessionVerifyURL:    env("SESSION_VERIFY_URL", ""),
		TokenExchangeURL:    env("TOKEN_EXCHANGE_URL", ""),
		CredentialVerifyURL: env("CREDENTIAL_VERIFY_URL", ""),
		BillingLedgerURL:    env("BILLING_LEDGER_URL", ""),
		StateEncryptionKey:  env("STATE_ENCRYPTION_KEY", ""),
		SecretSealKey:       env("CREDENTIAL_SEAL_KEY", ""),
		NonceTTL:            envDur("NONCE_TTL_SEC", 600) * time.Second,
		HealthPollInterval:  envDur("HEALTH_POLL_INTERVAL_SEC", 30) * time.Second,
		UpstreamTimeout:     envDur("UPSTREAM_TIMEOUT_SEC", 8) * time.Second,
		SavingsThresholdPct: envFloat("SAVINGS_THRESHOLD_PCT", 10),
		ProviderRegistryDir: env("PROVIDER_REGISTRY_DIR", ""),
		AdminIssuer:         env("ADMIN_OIDC_ISSUER", ""),
		AdminJWKSURL:        env("ADMIN_JWKS_URL", ""),
		AdminAudience:       env("ADMIN_OIDC_AUDIENCE", "edgegate-internal"),
		DevFakeSessions:     envBool("DEV_FAKE_SESSIONS", false),
		RedisURL:            env("REDIS_URL", ""),
		DatabaseURL:         env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory providers for dev")
	}
	if cfg.StateEncryptionKey == "" {
		log.Println("[WARN] STATE_ENCRYPTION_KEY not set — oauth state will not survive a restart")
	}
	if cfg.SecretSealKey == "" {
		log.Println("[WARN] CREDENTIAL_SEAL_KEY not set — admin secret intake stored unsealed")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return def
}
