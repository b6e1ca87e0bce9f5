package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "procurement-engine/internal/adapters/web"
	"procurement-engine/internal/app"
	"procurement-engine/internal/config"
	"procurement-engine/internal/core"
	"procurement-engine/internal/db"
	"procurement-engine/internal/logger"
	"procurement-engine/internal/metrics"
	"procurement-engine/internal/session"
	"procurement-engine/migrations"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg); err != nil {
		zl.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var (
		m           *metrics.Metrics
		metricsHTTP http.Handler
	)
	if cfg.MetricsEnabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		metricsHTTP = promhttp.Handler()
	}

	sessions, err := newSessionStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("session store", zap.Error(err))
	}

	store := core.NewPostgresStore(pool)
	procurement := core.NewProcurementService(store, store, zl.Named("procurement"), m)
	svc := app.NewAppService(procurement, sessions, zl.Named("app"))

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		Logger:         zl.Named("http"),
		Metrics:        metricsHTTP,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runMigrations(cfg *config.Config) error {
	if cfg.MigrationsDir != "" {
		return db.Migrate(cfg.DatabaseURL, nil, cfg.MigrationsDir)
	}
	return db.Migrate(cfg.DatabaseURL, migrations.FS, ".")
}

// newSessionStore uses redis when REDIS_URL is set and an in-memory store otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (session.Store, error) {
	if cfg.Redis.URL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		zl.Info("amendment sessions in redis", zap.Duration("ttl", cfg.Redis.SessionTTL))
		return session.NewRedisStore(rdb, cfg.Redis.SessionTTL), nil
	}
	mem := session.NewMemoryStore(cfg.Redis.SessionTTL)
	mem.StartPurge(ctx, time.Minute)
	zl.Info("amendment sessions in memory", zap.Duration("ttl", cfg.Redis.SessionTTL))
	return mem, nil
}
