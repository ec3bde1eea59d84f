package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/config"
	"github.com/geocoder89/tripdesk/internal/db"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	httpx "github.com/geocoder89/tripdesk/internal/http"
	"github.com/geocoder89/tripdesk/internal/observability"
	"github.com/geocoder89/tripdesk/internal/redisclient"
	"github.com/geocoder89/tripdesk/internal/repo/memory"
	"github.com/geocoder89/tripdesk/internal/repo/postgres"
	"github.com/geocoder89/tripdesk/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracerConfig{
		ServiceName: "tripdesk-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	routes, err := access.LoadRouteTable(cfg.RoutesFile)
	if err != nil {
		log.Error("route table load failed", "err", err, "file", cfg.RoutesFile)
		os.Exit(1)
	}

	users, closeUsers, err := openUsers(cfg, log, prom)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer closeUsers()

	sessions, closeSessions, err := openSessions(cfg, log, prom)
	if err != nil {
		log.Error("session store connect failed", "err", err)
		os.Exit(1)
	}
	defer closeSessions()

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)
	if err := db.EnsureAdminUser(seedCtx, users, user.ErrNotFound, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancelSeed()

	// set up routers with the log
	router := httpx.NewRouter(log, httpx.Deps{
		Users:    users,
		Sessions: sessions,
		Routes:   routes,
		Prom:     prom,
	}, cfg)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "admin_default_role", cfg.DefaultRole())
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openUsers connects to Postgres and applies migrations. In dev a missing
// database falls back to the in-memory repository.
func openUsers(cfg config.Config, log *slog.Logger, prom *observability.Prom) (httpx.UsersStore, func(), error) {
	attempts := 5
	if cfg.Env == "dev" {
		attempts = 1
	}

	pool, err := db.ConnectWithRetry(context.Background(), cfg.DBURL, cfg.DBMaxConns, attempts, log)

	if err != nil {
		if cfg.Env == "dev" {
			log.Warn("postgres unavailable, using in-memory users", "err", err)
			return memory.NewUsersRepo(), func() {}, nil
		}
		return nil, nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DBURL, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return postgres.NewUsersRepo(pool, prom), pool.Close, nil
}

// openSessions uses redis when REDIS_ADDR is set. Without it, or when redis is
// down in dev, sessions live in process memory.
func openSessions(cfg config.Config, log *slog.Logger, prom *observability.Prom) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, sessions are kept in memory")
		return session.NewMemoryStore(cfg.SessionTTL()), func() {}, nil
	}

	rc, err := redisclient.Connect(context.Background(), redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err != nil {
		if cfg.Env == "dev" {
			log.Warn("redis unavailable, sessions are kept in memory", "err", err)
			return session.NewMemoryStore(cfg.SessionTTL()), func() {}, nil
		}
		return nil, nil, err
	}

	return session.NewRedisStore(rc.Raw(), cfg.SessionTTL(), prom), func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis close failed", "err", err)
		}
	}, nil
}
