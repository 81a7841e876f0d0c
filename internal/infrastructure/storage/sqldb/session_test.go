package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txboundary/internal/core/tx"
	"txboundary/pkg/logger"
)

// ---------------------------------------------------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------------------------------------------------

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func setupBoundary(t *testing.T) (context.Context, *tx.Boundary, sqlmock.Sqlmock) {
	db, mock := setupMockDB(t)
	ctx := WithSession(context.Background(), NewSession(db, nil))
	return ctx, tx.NewBoundary(Provider(), tx.WithLogger(logger.Nop())), mock
}

// ---------------------------------------------------------------------------------------------------------------------
// NewSession
// ---------------------------------------------------------------------------------------------------------------------

func Test_NewSession(t *testing.T) {
	assert.Panics(t, func() {
		_ = NewSession(nil, nil)
	})
}

// ---------------------------------------------------------------------------------------------------------------------
// Session under a Boundary
// ---------------------------------------------------------------------------------------------------------------------

func Test_Session_Boundary(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := b.Run(ctx, func(ctx context.Context) error {
			_, err := SessionFromContext(ctx).Querier().ExecContext(ctx, "UPDATE accounts SET balance = 0")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnFnError", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)
		expectedErr := errors.New("fn error")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := b.Run(ctx, func(ctx context.Context) error {
			return expectedErr
		})

		assert.Same(t, expectedErr, err)
		assert.False(t, SessionFromContext(ctx).IsActive())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnFnPanic", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)
		panicValue := errors.New("panic error")

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, panicValue, func() {
			_ = b.Run(ctx, func(ctx context.Context) error {
				panic(panicValue)
			})
		})

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NestedJoinsOuter", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := b.Run(ctx, func(ctx context.Context) error {
			return b.Run(ctx, func(ctx context.Context) error {
				return nil
			})
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NestedFailureRollsBackOuter", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := b.Run(ctx, func(ctx context.Context) error {
			_ = b.Run(ctx, func(ctx context.Context) error {
				return errors.New("nested")
			})
			return nil
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CommitFailure", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)
		commitErr := errors.New("deadlock")

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(commitErr)

		err := b.Run(ctx, func(ctx context.Context) error {
			return nil
		})

		assert.ErrorIs(t, err, tx.ErrCommit)
		assert.ErrorIs(t, err, commitErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFailure", func(t *testing.T) {
		ctx, b, mock := setupBoundary(t)

		mock.ExpectBegin().WillReturnError(errors.New("db down"))

		err := b.Run(ctx, func(ctx context.Context) error {
			return errors.New("should not reach here")
		})

		assert.ErrorIs(t, err, tx.ErrBegin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoSession", func(t *testing.T) {
		b := tx.NewBoundary(Provider(), tx.WithLogger(logger.Nop()))

		err := b.Run(context.Background(), func(ctx context.Context) error {
			return nil
		})

		assert.ErrorIs(t, err, tx.ErrNoHandle)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

// ---------------------------------------------------------------------------------------------------------------------
// Session state
// ---------------------------------------------------------------------------------------------------------------------

func Test_Session_RollbackOnlyCommit(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewSession(db, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	require.NoError(t, s.Begin(context.Background()))
	s.MarkRollbackOnly()

	assert.ErrorIs(t, s.Commit(context.Background()), ErrRollbackOnly)
	assert.False(t, s.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Session_InactiveOperations(t *testing.T) {
	db, _ := setupMockDB(t)
	s := NewSession(db, nil)

	assert.ErrorIs(t, s.Commit(context.Background()), ErrNoTransaction)
	assert.ErrorIs(t, s.Rollback(context.Background()), ErrNoTransaction)
	assert.Same(t, db, s.Querier())
}
