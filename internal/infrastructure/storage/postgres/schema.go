package postgres

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		balance     NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version     INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id           UUID PRIMARY KEY,
		account_id   UUID NOT NULL REFERENCES accounts (id),
		transfer_id  UUID,
		kind         TEXT NOT NULL,
		amount       NUMERIC(20,4) NOT NULL,
		memo         TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_account_created_idx
		ON ledger_entries (account_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_transfer_idx
		ON ledger_entries (transfer_id) WHERE transfer_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS sys_outbox (
		id              UUID PRIMARY KEY,
		aggregate_type  TEXT NOT NULL,
		aggregate_id    UUID NOT NULL,
		event_type      TEXT NOT NULL,
		payload         JSONB NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		retry_count     INTEGER NOT NULL DEFAULT 0,
		last_error      TEXT,
		next_retry_at   TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		published_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS sys_outbox_pending_idx
		ON sys_outbox (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS sys_audit (
		id                  UUID PRIMARY KEY,
		entity_type         TEXT NOT NULL,
		entity_id           UUID NOT NULL,
		action              TEXT NOT NULL,
		request_id          TEXT NOT NULL DEFAULT '',
		changes             JSONB,
		changes_compressed  BYTEA,
		compression_algo    TEXT NOT NULL DEFAULT 'none',
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sys_audit_entity_idx
		ON sys_audit (entity_type, entity_id, created_at DESC)`,
}

// EnsureSchema creates the ledger tables in a single transaction.
func EnsureSchema(ctx context.Context, m *TxManager) error {
	return m.RunInTransaction(ctx, func(ctx context.Context) error {
		q := m.GetQuerier(ctx)
		for i, stmt := range schema {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
