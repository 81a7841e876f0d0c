// Package main runs the background worker that relays outbox events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txboundary/internal/config"
	"txboundary/internal/infrastructure/storage/postgres"
	"txboundary/pkg/logger"
)

const (
	pollInterval    = 2 * time.Second
	cleanupInterval = time.Hour
	batchSize       = 100
	retention       = 7 * 24 * time.Hour
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log.WithComponent("worker"))

	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManagerWithOptions(pool, cfg.TxOptions(), log)
	relay := postgres.NewOutboxRelay(txm, batchSize, postgres.OutboxHandlerFunc(logDelivery))

	log.Infow("worker started", "poll_interval", pollInterval)
	run(ctx, relay)
	log.Info("worker stopped")
}

// logDelivery is the delivery sink: events are written to the log.
func logDelivery(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "event delivered",
		"message_id", msg.ID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType,
		"payload", string(msg.Payload),
	)
	return nil
}

func run(ctx context.Context, relay *postgres.OutboxRelay) {
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			n, err := relay.ProcessBatch(ctx)
			if err != nil {
				logger.Error(ctx, "outbox batch failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "processed outbox batch", "count", n)
			}
		case <-cleanupTicker.C:
			n, err := relay.PurgePublished(ctx, retention)
			if err != nil {
				logger.Error(ctx, "outbox cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "purged published outbox messages", "count", n)
			}
		}
	}
}
