package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"txboundary/internal/core/tx"
)

var tracer = otel.Tracer("txboundary/postgres")

// Compile-time check that Session implements tx.Handle interface.
var _ tx.Handle = (*Session)(nil)

var (
	// ErrSessionActive is returned by Begin when a transaction is already open.
	ErrSessionActive = errors.New("postgres: session transaction already active")

	// ErrNoTransaction is returned by Commit/Rollback without an open transaction.
	ErrNoTransaction = errors.New("postgres: no active transaction")

	// ErrRollbackOnly is returned by Commit when the transaction was marked
	// rollback-only. The transaction is rolled back instead.
	ErrRollbackOnly = errors.New("postgres: transaction marked rollback-only was rolled back")
)

// Querier is satisfied by both pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the connection source a Session begins transactions on.
// *pgxpool.Pool and *Pool implement it.
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries (0 disables)
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// SerializableTxOptions for critical operations requiring serializable isolation.
func SerializableTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.IsolationLevel = pgx.Serializable
	return opts
}

// ReadOnlyTxOptions for queries that don't modify data.
func ReadOnlyTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly
	return opts
}

// Session is a tx.Handle backed by a pgx transaction.
//
// A session is confined to one call stack (usually one request) and can run
// several transactions one after another. It is not safe for concurrent use.
//
// pgx closes a transaction after any commit attempt, so the session is
// inactive after Commit whether or not it succeeded.
type Session struct {
	db           DB
	opts         TxOptions
	tx           pgx.Tx
	rollbackOnly bool
}

// NewSession creates an inactive session on db.
func NewSession(db DB, opts TxOptions) *Session {
	return &Session{db: db, opts: opts}
}

// Options returns the options used for new transactions.
func (s *Session) Options() TxOptions {
	return s.opts
}

// SetOptions replaces the options for the next transaction. It has no effect
// while a transaction is open.
func (s *Session) SetOptions(opts TxOptions) {
	if s.tx == nil {
		s.opts = opts
	}
}

func (s *Session) IsActive() bool {
	return s.tx != nil
}

func (s *Session) IsRollbackOnly() bool {
	return s.rollbackOnly
}

// Begin opens a transaction and applies the statement timeout.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrSessionActive
	}

	ctx, span := tracer.Start(ctx, "postgres.begin",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(s.opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(s.opts.AccessMode)),
		))
	defer span.End()

	pgTx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   s.opts.IsolationLevel,
		AccessMode: s.opts.AccessMode,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin transaction: %w", err)
	}

	if s.opts.StatementTimeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", s.opts.StatementTimeout.Milliseconds()))
		if err != nil {
			err = fmt.Errorf("set statement_timeout: %w", err)
			if rbErr := pgTx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	s.tx = pgTx
	s.rollbackOnly = false
	return nil
}

// Commit commits the open transaction. A rollback-only transaction is rolled
// back instead and ErrRollbackOnly is returned.
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

	pgTx := s.tx
	s.tx = nil
	return pgTx.Commit(ctx)
}

// Rollback rolls back the open transaction. The session is inactive afterwards
// even if the rollback fails: pgx closes the connection in that case.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	pgTx := s.tx
	s.tx = nil
	if err := pgTx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// MarkRollbackOnly is ignored when no transaction is open.
func (s *Session) MarkRollbackOnly() {
	if s.tx != nil {
		s.rollbackOnly = true
	}
}

// Querier returns the open transaction, or the DB itself outside a transaction.
func (s *Session) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Session) String() string {
	return fmt.Sprintf("postgres.Session(active=%t rollback_only=%t isolation=%s)",
		s.tx != nil, s.rollbackOnly, s.opts.IsolationLevel)
}
