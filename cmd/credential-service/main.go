// cmd/credential-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgegate/internal/credential"
	"edgegate/internal/health"
	"edgegate/internal/upstream"
	"edgegate/pkg/catalog"
	"edgegate/pkg/config"
	"edgegate/pkg/credentials"
	"edgegate/pkg/db"
	"edgegate/pkg/ledger"
	"edgegate/pkg/logger"
	"edgegate/pkg/middleware"
	"edgegate/pkg/openapi"
	"edgegate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.Service(cfg.Env, "credential")

	ctx := context.Background()
	pool := db.MustConnect(cfg, log)

	var prov tenants.Provider
	if pool != nil {
		prov = tenants.NewPostgresProvider(pool, log)
		if err := tenants.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("tenants schema", "err", err)
		}
		if err := tenants.SeedFromEnv(ctx, pool, os.Getenv("TENANT_SEED_JSON")); err != nil {
			log.Warnw("tenant seed", "err", err)
		}
	} else {
		prov = tenants.NewMemoryProviderFromEnv(log)
	}

	var store credentials.Store
	if pool != nil {
		store = credentials.NewPostgresStore(pool, log)
		if err := credentials.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("credentials schema", "err", err)
		}
	} else {
		store = credentials.NewMemoryStore()
	}

	cat, err := catalog.New(log, cfg.ProviderRegistryDir)
	if err != nil {
		log.Fatalw("provider catalog", "err", err)
	}

	mgr := upstream.NewManager(cfg)
	defer mgr.Close()

	rec := newRecorder(cfg, pool, mgr, log)

	engine := credential.NewEngine(prov, store, cat, rec, nil, log)
	handlers := credential.NewHandlers(engine, store, cat, cfg.SavingsThresholdPct, log)
	admin := credential.NewAdmin(store, cat, prov, rec, cfg.SecretSealKey, log)

	monitor := health.NewMonitor(store, cat,
		health.NewHTTPProber(cfg.CredentialVerifyURL, mgr, log),
		cfg.HealthPollInterval, log)
	mctx, stopMonitor := context.WithCancel(ctx)
	go func() { _ = monitor.Start(mctx) }()

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.DebugWriteHeader(log))
	r.Use(middleware.Tracing("credential-service"))
	r.Use(middleware.InternalAuth(cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	handlers.Mount(r)
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.RequireScope("credentials:admin"))
		admin.Mount(gr)
	})
	r.Get("/.well-known/openapi.json", describeAPI().ServeHandler("credential-service", "v1"))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.CredentialAddr, Handler: r}
	go func() {
		log.Infow("credential-service listening", "addr", cfg.CredentialAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	stopMonitor()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	fmt.Println("credential-service stopped")
}

func describeAPI() *openapi.Registry {
	reg := openapi.NewRegistry()
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/v1/resolve",
		Summary:   "Resolve the credential to use for a platform operation",
		Tags:      []string{"resolution"},
		Responses: map[string]any{"200": map[string]any{"description": "selected credential"}},
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/v1/credentials/status",
		Summary:   "Health and quota of a tenant's credentials",
		Tags:      []string{"health"},
		Responses: map[string]any{"200": map[string]any{"description": "per-credential status"}},
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/v1/cost-estimates",
		Summary:   "Compare monthly cost of two credential strategies",
		Tags:      []string{"billing"},
		Responses: map[string]any{"200": map[string]any{"description": "estimate with recommendation"}},
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/v1/admin/credentials",
		Summary:   "Create or update a credential record",
		Tags:      []string{"admin"},
		Responses: map[string]any{"201": map[string]any{"description": "record id"}},
	})
	reg.Register(openapi.Operation{
		Method: "PUT", Path: "/v1/admin/tenants/{tenant}/strategy",
		Summary:   "Set a tenant's credential strategy",
		Tags:      []string{"admin"},
		Responses: map[string]any{"200": map[string]any{"description": "strategy applied"}},
	})
	return reg
}

// newRecorder composes the ledger sinks: postgres when a database is
// configured, the billing service when its URL is set, memory otherwise.
func newRecorder(cfg config.Config, pool *pgxpool.Pool, mgr *upstream.Manager, log logger.Sugared) ledger.Recorder {
	var sinks ledger.Fanout
	if pool != nil {
		if err := ledger.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("ledger schema", "err", err)
		}
		sinks = append(sinks, ledger.NewPostgresRecorder(pool))
	}
	if cfg.BillingLedgerURL != "" {
		sinks = append(sinks, ledger.NewHTTPRecorder(cfg.BillingLedgerURL, mgr.Client()))
	}
	switch len(sinks) {
	case 0:
		return ledger.NewMemoryRecorder()
	case 1:
		return sinks[0]
	}
	return sinks
}
