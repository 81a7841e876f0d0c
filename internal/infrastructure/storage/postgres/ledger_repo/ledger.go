// Package ledger_repo provides the PostgreSQL implementation of ledger.Repository.
// Queries run on the transaction bound to the context, or on the pool outside one.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"txboundary/internal/core/apperror"
	"txboundary/internal/core/id"
	"txboundary/internal/domain/ledger"
	"txboundary/internal/infrastructure/storage/postgres"
)

const (
	accountsTable = "accounts"
	entriesTable  = "ledger_entries"
)

var (
	accountColumns = postgres.ExtractDBColumns[ledger.Account]()
	entryColumns   = postgres.ExtractDBColumns[ledger.Entry]()
)

// Compile-time check that Repo implements ledger.Repository interface.
var _ ledger.Repository = (*Repo)(nil)

// Repo stores accounts and entries.
type Repo struct {
	txm   *postgres.TxManager
	audit *postgres.AuditLog
}

// New creates a ledger repository. When audit is non-nil, account writes are
// recorded in the audit log within the same transaction.
func New(txm *postgres.TxManager, audit *postgres.AuditLog) *Repo {
	return &Repo{txm: txm, audit: audit}
}

// builder returns a new squirrel builder with PostgreSQL placeholder format.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) CreateAccount(ctx context.Context, acc *ledger.Account) error {
	sql, args, err := builder().
		Insert(accountsTable).
		Columns(accountColumns...).
		Values(acc.ID, acc.Name, acc.Balance, acc.Version, acc.CreatedAt, acc.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", accountsTable, err)
	}
	return r.recordChange(ctx, acc.ID, postgres.AuditActionCreate, postgres.StructToMap(acc))
}

func (r *Repo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	return r.getAccount(ctx, selectAccount(accountID, false), accountID)
}

func (r *Repo) GetAccountForUpdate(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	return r.getAccount(ctx, selectAccount(accountID, true), accountID)
}

func (r *Repo) getAccount(ctx context.Context, q squirrel.SelectBuilder, accountID id.ID) (*ledger.Account, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var acc ledger.Account
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &acc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID)
		}
		return nil, fmt.Errorf("select %s: %w", accountsTable, err)
	}
	return &acc, nil
}

func (r *Repo) UpdateBalance(ctx context.Context, acc *ledger.Account) error {
	sql, args, err := updateBalance(acc).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", accountsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("account", acc.ID)
	}

	acc.Version++
	return r.recordChange(ctx, acc.ID, postgres.AuditActionUpdate, map[string]any{
		"balance": acc.Balance,
		"version": acc.Version,
	})
}

func (r *Repo) recordChange(ctx context.Context, accountID id.ID, action postgres.AuditAction, changes map[string]any) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.LogChange(ctx, "account", accountID, action, changes)
}

func (r *Repo) InsertEntry(ctx context.Context, entry *ledger.Entry) error {
	sql, args, err := builder().
		Insert(entriesTable).
		Columns(entryColumns...).
		Values(entry.ID, entry.AccountID, entry.TransferID, entry.Kind, entry.Amount, entry.Memo, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", entriesTable, err)
	}
	return nil
}

func (r *Repo) ListEntries(ctx context.Context, accountID id.ID, limit int) ([]ledger.Entry, error) {
	sql, args, err := listEntries(accountID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	entries := make([]ledger.Entry, 0, limit)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", entriesTable, err)
	}
	return entries, nil
}

func selectAccount(accountID id.ID, forUpdate bool) squirrel.SelectBuilder {
	q := builder().
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": accountID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

// updateBalance matches on the current version (optimistic locking).
func updateBalance(acc *ledger.Account) squirrel.UpdateBuilder {
	return builder().
		Update(accountsTable).
		Set("balance", acc.Balance).
		Set("version", acc.Version+1).
		Set("updated_at", acc.UpdatedAt).
		Where(squirrel.Eq{"id": acc.ID, "version": acc.Version})
}

func listEntries(accountID id.ID, limit int) squirrel.SelectBuilder {
	return builder().
		Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
}
