package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/config"
	"github.com/xavierca1/route2rise-console/internal/infra/http/handlers"
	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
	"github.com/xavierca1/route2rise-console/internal/logger"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/telemetry"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	tp, err := telemetry.New(context.Background(), "route2rise-console", cfg.TelemetryEndpoint, cfg.TelemetryInsecure, log)
	if err != nil {
		log.Fatal("init telemetry", zap.Error(err))
	}

	// 1. Client storage
	store, checks, closeStore, err := openStorage(cfg, log)
	if err != nil {
		log.Fatal("open storage", zap.Error(err))
	}
	defer closeStore()

	// 2. CRM client and per-client workspaces
	api := crm.NewClient(cfg.APIBaseURL, cfg.APITimeout, store, log.Named("crm"))
	checks["crm"] = api.Health
	policy := usecase.ParseVerifyPolicy(cfg.VerifyPolicy)

	workspaces := func(clientID string) handlers.Workspace {
		client := api.WithStore(storage.NewNamespaced(store, clientID))
		return handlers.Workspace{
			Sessions: usecase.NewSessionStore(client, policy, log.Named("session")),
			Leads:    usecase.NewLeadService(client),
		}
	}

	// 3. Shells, one per browser load
	shells := shell.NewRegistry()
	stopSweeper := make(chan struct{})
	go shells.RunSweeper(10*time.Minute, cfg.ShellIdleTimeout, stopSweeper)
	defer close(stopSweeper)

	// 4. Handlers
	pages, err := handlers.LoadPages()
	if err != nil {
		log.Fatal("load templates", zap.Error(err))
	}
	console := handlers.NewConsoleHandler(workspaces, shells, pages, log.Named("console"), cfg.PollInterval)
	if cfg.LoginRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.LoginRateLimit)
		go limiter.RunCleanup(10*time.Minute, stopSweeper)
		console.LimitLogins(limiter)
	}
	health := handlers.NewHealthHandler(version, checks)

	// 5. Router
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", health.Handle)
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.ClientID(cfg.CookieSecure))
		console.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("console listening", zap.String("addr", cfg.HTTPAddr), zap.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("telemetry shutdown", zap.Error(err))
	}
}

// openStorage picks the backend holding each browser's session keys.
func openStorage(cfg config.Config, log *zap.Logger) (storage.Store, map[string]handlers.HealthCheck, func(), error) {
	checks := map[string]handlers.HealthCheck{}

	switch cfg.StorageBackend {
	case "postgres":
		db, err := storage.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		pg := storage.NewPostgresStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		checks["postgres"] = db.PingContext
		log.Info("client storage: postgres")
		return pg, checks, func() { db.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("client storage: redis", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisStore(client, "route2rise:", cfg.StorageTTL), checks, func() { client.Close() }, nil
	}

	log.Info("client storage: memory")
	return storage.NewMemoryStore(), checks, func() {}, nil
}
