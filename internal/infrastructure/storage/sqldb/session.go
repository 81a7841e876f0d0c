// Package sqldb provides a tx.Handle over database/sql, for drivers other than pgx.
//
// In this implementation the open transaction is a *sql.Tx. To reach it from a
// repository method, take the session from context:
//
//	func (r *SomeRepo) SomeMethod(ctx context.Context, ...) ... {
//	    q := sqldb.SessionFromContext(ctx).Querier()
//	    // ...
//	}
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"txboundary/internal/core/tx"
)

// Compile-time check that Session implements tx.Handle interface.
var _ tx.Handle = (*Session)(nil)

var (
	ErrSessionActive = errors.New("sqldb: session transaction already active")
	ErrNoTransaction = errors.New("sqldb: no active transaction")
	ErrRollbackOnly  = errors.New("sqldb: transaction marked rollback-only was rolled back")
	ErrNoSession     = errors.New("sqldb: no session bound to context")
)

// Querier is satisfied by both *sql.Tx and *sql.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a tx.Handle backed by *sql.Tx. Not safe for concurrent use.
//
// database/sql marks a transaction done on the first Commit or Rollback call,
// so the session is inactive after either, regardless of the outcome.
type Session struct {
	db           *sql.DB
	opts         *sql.TxOptions
	tx           *sql.Tx
	rollbackOnly bool
}

// NewSession - see Session.
//
// Panics, if db is nil.
func NewSession(db *sql.DB, opts *sql.TxOptions) *Session {
	if db == nil {
		panic("sqldb.NewSession : db must not be nil")
	}
	return &Session{db: db, opts: opts}
}

func (s *Session) IsActive() bool {
	return s.tx != nil
}

func (s *Session) IsRollbackOnly() bool {
	return s.rollbackOnly
}

func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrSessionActive
	}

	sqlTx, err := s.db.BeginTx(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.tx = sqlTx
	s.rollbackOnly = false
	return nil
}

func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	if s.rollbackOnly {
		if err := s.Rollback(ctx); err != nil {
			return err
		}
		return ErrRollbackOnly
	}

	sqlTx := s.tx
	s.tx = nil
	return sqlTx.Commit()
}

func (s *Session) Rollback(_ context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	sqlTx := s.tx
	s.tx = nil
	if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (s *Session) MarkRollbackOnly() {
	if s.tx != nil {
		s.rollbackOnly = true
	}
}

// Querier returns the open transaction, or the DB outside a transaction.
func (s *Session) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Session) String() string {
	return fmt.Sprintf("sqldb.Session(active=%t rollback_only=%t)", s.tx != nil, s.rollbackOnly)
}

type sessionKey struct{}

// WithSession binds s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the bound session, or nil if none.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return nil
}

// Provider hands out the session bound to the call context.
func Provider() tx.Provider {
	return tx.ProviderFunc(func(ctx context.Context) (tx.Handle, error) {
		if s := SessionFromContext(ctx); s != nil {
			return s, nil
		}
		return nil, ErrNoSession
	})
}
