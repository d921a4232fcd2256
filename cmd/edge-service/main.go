// cmd/edge-service/main.go
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

	"edgegate/internal/guard"
	"edgegate/internal/integrations"
	"edgegate/internal/linkpolicy"
	"edgegate/internal/oauth"
	"edgegate/internal/upstream"
	"edgegate/pkg/catalog"
	"edgegate/pkg/config"
	"edgegate/pkg/credentials"
	"edgegate/pkg/db"
	"edgegate/pkg/ledger"
	"edgegate/pkg/logger"
	"edgegate/pkg/middleware"
	"edgegate/pkg/nonce"
	"edgegate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.Service(cfg.Env, "edge")

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
	resolver := tenants.NewResolver(prov, cfg.DefaultTenantID)

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

	// Nonce storage must be shared across replicas; redis when available,
	// process-local memory for single-instance dev.
	var nonces nonce.Store
	if rdb := db.MustRedis(cfg, log); rdb != nil {
		nonces = nonce.NewRedisStore(rdb)
	} else {
		nonces = nonce.NewMemoryStore()
	}

	codec, err := oauth.NewCodec(cfg.StateEncryptionKey)
	if err != nil {
		log.Fatalw("state codec", "err", err)
	}

	var sources linkpolicy.SourceStore
	if pool != nil {
		sources = linkpolicy.NewPostgresStore(pool)
		if err := linkpolicy.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("link policy schema", "err", err)
		}
	} else {
		sources = linkpolicy.NewMemoryStore()
	}

	rec := newRecorder(cfg, pool, mgr, log)

	broker := oauth.NewBroker(codec, nonces, cat,
		oauth.NewHTTPExchanger(cfg.TokenExchangeURL, mgr.Client()),
		store, rec, linkpolicy.NewService(sources, log),
		cfg.BasePublicURL, cfg.NonceTTL, log)

	var verifier guard.Verifier
	if cfg.Env == "dev" && cfg.DevFakeSessions {
		log.Warnw("stub session verifier active, every token verifies as onboarded")
		verifier = guard.StubVerifier{}
	} else {
		if cfg.SessionVerifyURL == "" {
			log.Warnw("SESSION_VERIFY_URL not set, all sessions will fail verification")
		}
		verifier = guard.NewHTTPVerifier(cfg.SessionVerifyURL, mgr.Client())
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.DebugWriteHeader(log))
	// Browser-facing service: echo the origin so cookie-carrying requests
	// from tenant dashboards pass CORS.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.Tracing("edge-service"))
	r.Use(middleware.WithTenant(resolver))
	r.Use(guard.New(verifier, guard.DefaultRoutes(), log).Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	oauth.NewHandlers(broker, log).Mount(r)
	integrations.NewHandlers(cat, store, log).Mount(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("edge-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	fmt.Println("edge-service stopped")
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
