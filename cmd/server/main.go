// Package main is the entry point for the ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"txboundary/internal/config"
	"txboundary/internal/domain/ledger"
	v1 "txboundary/internal/infrastructure/http/v1"
	"txboundary/internal/infrastructure/metrics"
	"txboundary/internal/infrastructure/storage/postgres"
	"txboundary/internal/infrastructure/storage/postgres/ledger_repo"
	"txboundary/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting txboundary server", "env", cfg.Env)

	// --- Metrics ---
	m, metricsHandler, err := metrics.Setup("txboundary")
	if err != nil {
		log.Fatalw("failed to set up metrics", "error", err)
	}

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManagerWithOptions(pool, cfg.TxOptions(), log)

	if cfg.Database.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, txm); err != nil {
			log.Fatalw("failed to ensure schema", "error", err)
		}
		log.Info("database schema ready")
	}

	// --- Services ---
	audit, err := postgres.NewAuditLog(txm, cfg.Database.AuditCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create audit log", "error", err)
	}
	ledgerService := ledger.NewService(ledger_repo.New(txm, audit), txm,
		ledger.WithEvents(postgres.NewOutboxPublisher(txm)),
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		TxManager:      txm,
		Logger:         log,
		Ledger:         ledgerService,
		Metrics:        m,
		MetricsHandler: metricsHandler,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	pool.LogStats(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
