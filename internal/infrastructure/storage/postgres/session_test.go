package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txboundary/internal/core/tx"
	"txboundary/pkg/logger"
)

// fakeTx embeds pgx.Tx so only the methods a Session uses need implementing.
type fakeTx struct {
	pgx.Tx

	execs       []string
	args        [][]any
	execErr     error
	commitErr   error
	rollbackErr error
	commits     int
	rollbacks   int
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	t.args = append(t.args, args)
	return pgconn.CommandTag{}, t.execErr
}

func (t *fakeTx) Commit(context.Context) error {
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rollbacks++
	return t.rollbackErr
}

type fakeDB struct {
	txs      []*fakeTx
	next     *fakeTx
	beginErr error
	opts     []pgx.TxOptions
}

func (d *fakeDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	d.opts = append(d.opts, opts)
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	t := d.next
	if t == nil {
		t = &fakeTx{}
	}
	d.next = nil
	d.txs = append(d.txs, t)
	return t, nil
}

func (d *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestSession_BeginAppliesOptions(t *testing.T) {
	db := &fakeDB{}
	s := NewSession(db, SerializableTxOptions())

	require.NoError(t, s.Begin(context.Background()))

	assert.True(t, s.IsActive())
	require.Len(t, db.opts, 1)
	assert.Equal(t, pgx.Serializable, db.opts[0].IsoLevel)
	assert.Equal(t, pgx.ReadWrite, db.opts[0].AccessMode)
	assert.Equal(t, []string{"SET LOCAL statement_timeout = '30000ms'"}, db.txs[0].execs)
	assert.Same(t, db.txs[0], s.Querier())
}

func TestSession_BeginWithoutStatementTimeout(t *testing.T) {
	db := &fakeDB{}
	opts := DefaultTxOptions()
	opts.StatementTimeout = 0
	s := NewSession(db, opts)

	require.NoError(t, s.Begin(context.Background()))
	assert.Empty(t, db.txs[0].execs)
}

func TestSession_QuerierOutsideTransactionIsDB(t *testing.T) {
	db := &fakeDB{}
	s := NewSession(db, DefaultTxOptions())

	assert.Same(t, db, s.Querier())
}

func TestSession_BeginTwiceFails(t *testing.T) {
	s := NewSession(&fakeDB{}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	assert.ErrorIs(t, s.Begin(context.Background()), ErrSessionActive)
}

func TestSession_BeginFailure(t *testing.T) {
	beginErr := errors.New("too many clients")
	s := NewSession(&fakeDB{beginErr: beginErr}, DefaultTxOptions())

	err := s.Begin(context.Background())

	assert.ErrorIs(t, err, beginErr)
	assert.False(t, s.IsActive())
}

func TestSession_StatementTimeoutFailureRollsBack(t *testing.T) {
	pgTx := &fakeTx{execErr: errors.New("syntax error")}
	s := NewSession(&fakeDB{next: pgTx}, DefaultTxOptions())

	err := s.Begin(context.Background())

	assert.ErrorIs(t, err, pgTx.execErr)
	assert.False(t, s.IsActive())
	assert.Equal(t, 1, pgTx.rollbacks)
}

func TestSession_StatementTimeoutFailureKeepsRollbackError(t *testing.T) {
	pgTx := &fakeTx{execErr: errors.New("syntax error"), rollbackErr: errors.New("conn closed")}
	s := NewSession(&fakeDB{next: pgTx}, DefaultTxOptions())

	err := s.Begin(context.Background())

	assert.ErrorIs(t, err, pgTx.execErr)
	assert.ErrorIs(t, err, pgTx.rollbackErr)
	assert.False(t, s.IsActive())
}

func TestSession_CommitLeavesSessionInactive(t *testing.T) {
	db := &fakeDB{}
	s := NewSession(db, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	require.NoError(t, s.Commit(context.Background()))

	assert.False(t, s.IsActive())
	assert.Equal(t, 1, db.txs[0].commits)
	assert.ErrorIs(t, s.Commit(context.Background()), ErrNoTransaction)
}

func TestSession_FailedCommitLeavesSessionInactive(t *testing.T) {
	pgTx := &fakeTx{commitErr: pgx.ErrTxCommitRollback}
	s := NewSession(&fakeDB{next: pgTx}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	err := s.Commit(context.Background())

	assert.ErrorIs(t, err, pgx.ErrTxCommitRollback)
	assert.False(t, s.IsActive())
}

func TestSession_RollbackOnClosedTransaction(t *testing.T) {
	pgTx := &fakeTx{rollbackErr: pgx.ErrTxClosed}
	s := NewSession(&fakeDB{next: pgTx}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	assert.NoError(t, s.Rollback(context.Background()))
	assert.False(t, s.IsActive())
	assert.ErrorIs(t, s.Rollback(context.Background()), ErrNoTransaction)
}

func TestSession_RollbackFailureStillDeactivates(t *testing.T) {
	pgTx := &fakeTx{rollbackErr: errors.New("conn busy")}
	s := NewSession(&fakeDB{next: pgTx}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	assert.ErrorIs(t, s.Rollback(context.Background()), pgTx.rollbackErr)
	assert.False(t, s.IsActive())
}

func TestSession_RollbackOnlyCommitRollsBack(t *testing.T) {
	db := &fakeDB{}
	s := NewSession(db, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))
	s.MarkRollbackOnly()

	err := s.Commit(context.Background())

	assert.ErrorIs(t, err, ErrRollbackOnly)
	assert.Equal(t, 0, db.txs[0].commits)
	assert.Equal(t, 1, db.txs[0].rollbacks)
	assert.True(t, s.IsRollbackOnly())
}

func TestSession_BeginClearsRollbackOnly(t *testing.T) {
	s := NewSession(&fakeDB{}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))
	s.MarkRollbackOnly()
	require.NoError(t, s.Rollback(context.Background()))
	require.True(t, s.IsRollbackOnly())

	require.NoError(t, s.Begin(context.Background()))

	assert.False(t, s.IsRollbackOnly())
}

func TestSession_MarkRollbackOnlyWithoutTransaction(t *testing.T) {
	s := NewSession(&fakeDB{}, DefaultTxOptions())
	s.MarkRollbackOnly()
	assert.False(t, s.IsRollbackOnly())
}

func TestTxManager_NestedCallsShareOneTransaction(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		outer := m.GetQuerier(ctx)
		return m.RunInTransaction(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, m.GetQuerier(ctx))
			return nil
		})
	})

	require.NoError(t, err)
	require.Len(t, db.txs, 1)
	assert.Equal(t, 1, db.txs[0].commits)
	assert.Equal(t, 0, db.txs[0].rollbacks)
}

func TestTxManager_NestedFailureRollsBackOuter(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())
	opErr := errors.New("insufficient funds")

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_ = m.RunInTransaction(ctx, func(ctx context.Context) error {
			return opErr
		})
		return nil
	})

	require.NoError(t, err)
	require.Len(t, db.txs, 1)
	assert.Equal(t, 0, db.txs[0].commits)
	assert.Equal(t, 1, db.txs[0].rollbacks)
}

func TestTxManager_CommitFailureIsSurfaced(t *testing.T) {
	commitErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	db := &fakeDB{next: &fakeTx{commitErr: commitErr}}
	m := NewTxManagerFromDB(db, logger.Nop())

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.ErrorIs(t, err, tx.ErrCommit)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, 0, db.txs[0].rollbacks, "pgx closes the transaction on commit")
}

func TestTxManager_SequentialCallsOnBoundSession(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())
	ctx := m.Bind(context.Background())

	for i := 0; i < 2; i++ {
		require.NoError(t, m.RunInTransaction(ctx, func(ctx context.Context) error { return nil }))
	}

	require.Len(t, db.txs, 2)
	assert.False(t, SessionFromContext(ctx).IsActive())
}

func TestTxManager_ReadOnly(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())

	require.NoError(t, m.ReadOnly(context.Background(), func(ctx context.Context) error { return nil }))

	require.Len(t, db.opts, 1)
	assert.Equal(t, pgx.ReadOnly, db.opts[0].AccessMode)
}

func TestTxManager_ReadOnlyOnBoundSession(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())
	ctx := m.Bind(context.Background())

	require.NoError(t, m.ReadOnly(ctx, func(ctx context.Context) error { return nil }))
	require.NoError(t, m.RunInTransaction(ctx, func(ctx context.Context) error { return nil }))

	require.Len(t, db.opts, 2)
	assert.Equal(t, pgx.ReadOnly, db.opts[0].AccessMode)
	assert.Equal(t, pgx.ReadWrite, db.opts[1].AccessMode)
}

func TestTxManager_JoinedCallKeepsEnclosingOptions(t *testing.T) {
	db := &fakeDB{}
	m := NewTxManagerFromDB(db, logger.Nop())

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return m.ReadOnly(ctx, func(ctx context.Context) error {
			assert.Equal(t, pgx.ReadWrite, SessionFromContext(ctx).Options().AccessMode)
			return nil
		})
	})

	require.NoError(t, err)
	require.Len(t, db.opts, 1)
	assert.Equal(t, pgx.ReadWrite, db.opts[0].AccessMode)
}

func TestSession_SetOptionsIgnoredWhileActive(t *testing.T) {
	s := NewSession(&fakeDB{}, DefaultTxOptions())
	require.NoError(t, s.Begin(context.Background()))

	s.SetOptions(ReadOnlyTxOptions())

	assert.Equal(t, pgx.ReadWrite, s.Options().AccessMode)
}

func TestTxManager_Call(t *testing.T) {
	m := NewTxManagerFromDB(&fakeDB{}, logger.Nop())

	got, err := Call(context.Background(), m, func(ctx context.Context) (time.Duration, error) {
		return SessionFromContext(ctx).Options().StatementTimeout, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got)
}

func TestContextProvider_NoSession(t *testing.T) {
	m := NewTxManagerFromDB(&fakeDB{}, logger.Nop())

	err := m.Boundary().Run(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.ErrorIs(t, err, tx.ErrNoHandle)
	assert.ErrorIs(t, err, ErrNoSession)
}
