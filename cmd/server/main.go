// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"breachscan/internal/audit"
	"breachscan/internal/fingerprint"
	"breachscan/internal/identity"
	"breachscan/internal/kvstore"
	"breachscan/internal/match"
	"breachscan/internal/platform/config"
	"breachscan/internal/platform/httpserver"
	"breachscan/internal/platform/logger"
	"breachscan/internal/platform/metrics"
	"breachscan/internal/platform/postgres"
	platformredis "breachscan/internal/platform/redis"
	scanhandler "breachscan/internal/scan/handler"
	"breachscan/internal/scan/index"
	scanservice "breachscan/internal/scan/service"
	scanstore "breachscan/internal/scan/store"
	"breachscan/internal/scan/txstatus"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	m := metrics.New()

	store, cleanup, err := buildStore(cfg, m, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sealer, err := fingerprint.NewSealer([]byte(cfg.SealKey))
	if err != nil {
		return err
	}

	matcher, err := buildMatcher(cfg, store)
	if err != nil {
		return err
	}
	log.Info("breach corpus loaded", "entries", matcher.Len())

	auditInbox := make(chan audit.Event, 256)
	auditWorker := audit.NewWorker(audit.NewService(audit.NewKVStore(store)), auditInbox, log)

	reporter := txstatus.New(cfg.StatusWindow)
	engine := scanservice.New(scanservice.Config{
		Records:         scanstore.New(store, log),
		Index:           index.NewManager(store, log),
		Encrypter:       sealer,
		Matcher:         matcher,
		Status:          reporter,
		Metrics:         m,
		Logger:          log,
		Audit:           auditInbox,
		ResolutionDelay: cfg.ResolutionDelay,
		OpTimeout:       cfg.StoreOpTimeout,
	})
	defer engine.Close()

	jwtService := identity.NewJWTService(cfg.JWTSigningKey, "breachscan")

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.IsAvailable(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded","store":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	scanhandler.New(engine, log, m, jwtService).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting breachscan", "addr", cfg.Addr, "backend", string(cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := auditWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects the key-value adapter from configuration.
func buildStore(cfg config.Config, m *metrics.Metrics, log *slog.Logger) (kvstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewRedis(client.Client, m), func() { _ = client.Close() }, nil
	case config.BackendPostgres:
		db, err := postgres.Open(context.Background(), cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		pg := kvstore.NewPostgres(db, m)
		if err := pg.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil
	default:
		log.Warn("using in-memory store; data will not survive restarts")
		return kvstore.NewMemory(), func() {}, nil
	}
}

// buildMatcher loads the breach corpus from disk when configured, otherwise
// from the store's seeded corpus key.
func buildMatcher(cfg config.Config, store kvstore.Store) (*match.Corpus, error) {
	if cfg.CorpusPath != "" {
		return match.LoadCorpusFile(cfg.CorpusPath)
	}
	return match.LoadCorpusStore(context.Background(), store)
}
