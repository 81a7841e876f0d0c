package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"txboundary/internal/core/tx"
	"txboundary/pkg/logger"
)

// Compile-time check that TxManager implements tx.ReadOnlyManager interface.
var _ tx.ReadOnlyManager = (*TxManager)(nil)

// TxManager runs functions inside transaction boundaries on a PostgreSQL pool.
//
// The transaction handle is the Session bound to the context. When the
// context carries no session a fresh one is bound for the duration of the
// call, so TxManager works both behind the Session middleware and standalone.
// Nested calls find the session already active and join it.
type TxManager struct {
	db       DB
	opts     TxOptions
	boundary *tx.Boundary
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool, log *logger.Logger) *TxManager {
	return NewTxManagerFromDB(pool, log)
}

// NewTxManagerFromRawPool creates a new transaction manager from raw pgxpool.Pool.
func NewTxManagerFromRawPool(pool *pgxpool.Pool, log *logger.Logger) *TxManager {
	return NewTxManagerFromDB(pool, log)
}

// NewTxManagerWithOptions creates a transaction manager whose sessions use
// txOpts unless a call overrides them.
func NewTxManagerWithOptions(pool *Pool, txOpts TxOptions, log *logger.Logger) *TxManager {
	m := NewTxManagerFromDB(pool, log)
	m.opts = txOpts
	return m
}

// NewTxManagerFromDB creates a transaction manager on any DB.
func NewTxManagerFromDB(db DB, log *logger.Logger) *TxManager {
	opts := []tx.Option{tx.WithName("postgres")}
	if log != nil {
		opts = append(opts, tx.WithLogger(log.WithComponent("tx")))
	}
	return &TxManager{
		db:       db,
		opts:     DefaultTxOptions(),
		boundary: tx.NewBoundary(ContextProvider{}, opts...),
	}
}

// Boundary exposes the underlying boundary for use with tx.Call.
// Contexts passed to it must come from Bind.
func (m *TxManager) Boundary() *tx.Boundary {
	return m.boundary
}

// RunInTransaction executes fn within a transaction with default options.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, m.opts, fn)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
// A joined call inherits the enclosing transaction's options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	return m.boundary.Run(m.BindWithOptions(ctx, opts), fn)
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, ReadOnlyTxOptions(), fn)
}

// Bind returns ctx with a session bound, creating one with the manager's
// options when ctx has none. The next transaction on the session uses the
// manager's options.
func (m *TxManager) Bind(ctx context.Context) context.Context {
	return m.BindWithOptions(ctx, m.opts)
}

// BindWithOptions is Bind with explicit options. An already bound session
// without an open transaction takes opts for its next transaction.
func (m *TxManager) BindWithOptions(ctx context.Context, opts TxOptions) context.Context {
	if s := SessionFromContext(ctx); s != nil {
		s.SetOptions(opts)
		return ctx
	}
	return WithSession(ctx, NewSession(m.db, opts))
}

// GetQuerier returns the open transaction if the context has one, otherwise the DB.
// This allows repos to work both inside and outside transactions.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if s := SessionFromContext(ctx); s != nil {
		return s.Querier()
	}
	return m.db
}

// Call executes fn within a transaction and returns its result.
func Call[T any](ctx context.Context, m *TxManager, fn func(ctx context.Context) (T, error)) (T, error) {
	return tx.Call(m.Bind(ctx), m.boundary, fn)
}
