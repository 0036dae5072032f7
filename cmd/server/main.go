// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
//
// Without CLUBHUB_DATABASE_URL the process runs fully in-memory, which is
// enough for local development against the HTTP surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"clubhub/internal/audit"
	"clubhub/internal/auth/token"
	"clubhub/internal/directory"
	"clubhub/internal/ownership/handler"
	"clubhub/internal/ownership/limiter"
	ownershipMetrics "clubhub/internal/ownership/metrics"
	"clubhub/internal/ownership/registry"
	"clubhub/internal/ownership/service"
	"clubhub/internal/ownership/store"
	"clubhub/internal/platform/config"
	"clubhub/internal/platform/httpserver"
	"clubhub/internal/platform/logger"
	platformMetrics "clubhub/internal/platform/metrics"
	"clubhub/internal/platform/postgres"
	platformRedis "clubhub/internal/platform/redis"
	httptransport "clubhub/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	reg := registry.Default()
	if err := reg.Validate(); err != nil {
		log.Error("entity registry invalid", "error", err)
		os.Exit(1)
	}

	var (
		ownershipStore store.Store
		ownershipTx    store.Tx
		users          directory.Directory
		auditStore     audit.Store
	)
	checks := map[string]httptransport.HealthChecker{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ownershipStore = store.NewPostgres(db, reg)
		ownershipTx = store.NewSQLTx(db)
		users = directory.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		checks["postgres"] = db.PingContext
		log.Info("using postgres storage")
	} else {
		memStore := store.NewInMemory(reg)
		ownershipStore = memStore
		ownershipTx = store.NewInMemoryTx()
		users = directory.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Warn("no database configured, running with in-memory storage")
	}

	var attempts limiter.AttemptLimiter = limiter.NewMemory(cfg.ClaimAttempts.Limit, cfg.ClaimAttempts.Window)
	redisClient, err := platformRedis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		attempts = limiter.NewRedis(redisClient.Client, cfg.ClaimAttempts.Limit, cfg.ClaimAttempts.Window)
		checks["redis"] = redisClient.Health
		log.Info("using redis claim-attempt limiter")
	}

	ownershipSvc := service.New(ownershipStore, users, reg,
		service.WithTx(ownershipTx),
		service.WithLogger(log),
		service.WithMetrics(ownershipMetrics.New()),
		service.WithAuditPublisher(audit.NewPublisher(auditStore)),
		service.WithAttemptLimiter(attempts),
	)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	httpMetrics := platformMetrics.New()
	ownershipHandler := handler.New(ownershipSvc, log, httpMetrics, tokens)
	router := httptransport.NewRouter(checks, ownershipHandler)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting clubhub ownership service", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
