// Package main provides a CLI tool for seeding the database with demo accounts.
package main

import (
	"context"
	"fmt"
	"os"

	"txboundary/internal/config"
	"txboundary/internal/core/types"
	"txboundary/internal/domain/ledger"
	"txboundary/internal/infrastructure/storage/postgres"
	"txboundary/internal/infrastructure/storage/postgres/ledger_repo"
	"txboundary/pkg/logger"
)

type demoAccount struct {
	name    string
	opening string
}

var demoAccounts = []demoAccount{
	{name: "Operating", opening: "10000"},
	{name: "Payroll", opening: "2500"},
	{name: "Reserve", opening: "0"},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManagerWithOptions(pool, cfg.TxOptions(), log)
	if err := postgres.EnsureSchema(ctx, txm); err != nil {
		log.Fatalw("failed to ensure schema", "error", err)
	}

	audit, err := postgres.NewAuditLog(txm, cfg.Database.AuditCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create audit log", "error", err)
	}
	svc := ledger.NewService(ledger_repo.New(txm, audit), txm,
		ledger.WithEvents(postgres.NewOutboxPublisher(txm)),
	)

	// One transaction for the whole seed: a failure leaves no partial data.
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		accounts := make([]*ledger.Account, 0, len(demoAccounts))
		for _, d := range demoAccounts {
			acc, err := svc.OpenAccount(ctx, d.name, types.MustMoney(d.opening))
			if err != nil {
				return fmt.Errorf("open %s: %w", d.name, err)
			}
			accounts = append(accounts, acc)
		}

		_, err := svc.Transfer(ctx, accounts[0].ID, accounts[2].ID, types.MustMoney("1500"), "initial reserve")
		return err
	})
	if err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Infow("seed completed", "accounts", len(demoAccounts))
}
