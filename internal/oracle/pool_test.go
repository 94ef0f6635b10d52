package oracle

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, acquireTimeout time.Duration) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	return NewPoolFromDB(db, "SCOTT", acquireTimeout), mock
}

func TestWithConnectionReleasesOnSuccess(t *testing.T) {
	pool, _ := newTestPool(t, time.Second)

	// With a single pooled session, a leaked connection would make any
	// follow-up borrow time out.
	for i := 0; i < 3; i++ {
		err := pool.WithConnection(context.Background(), func(conn *sql.Conn) error {
			require.Equal(t, 1, pool.Stats().InUse)
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 0, pool.Stats().InUse)
}

func TestWithConnectionReleasesOnHandlerError(t *testing.T) {
	pool, _ := newTestPool(t, time.Second)

	handlerErr := errors.New("handler exploded")
	err := pool.WithConnection(context.Background(), func(conn *sql.Conn) error {
		return handlerErr
	})
	require.ErrorIs(t, err, handlerErr)

	// The failed call must have released its session.
	require.Equal(t, 0, pool.Stats().InUse)
	err = pool.WithConnection(context.Background(), func(conn *sql.Conn) error { return nil })
	require.NoError(t, err)
}

func TestAcquireTimeoutBeyondPoolSize(t *testing.T) {
	pool, _ := newTestPool(t, 50*time.Millisecond)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	start := time.Now()
	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrAcquireTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireTimeoutErrorIsDistinct(t *testing.T) {
	// Pool exhaustion must be distinguishable from a SQL failure.
	require.False(t, errors.Is(ErrAcquireTimeout, sql.ErrNoRows))
	require.False(t, errors.Is(ErrAcquireTimeout, context.Canceled))
}

func TestAcquireHonorsCallerCancellation(t *testing.T) {
	pool, _ := newTestPool(t, time.Minute)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAcquireTimeout)
}

func TestConcurrentBorrowsStayWithinBound(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(2)
	pool := NewPoolFromDB(db, "SCOTT", time.Second)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- pool.WithConnection(context.Background(), func(conn *sql.Conn) error {
				require.LessOrEqual(t, pool.Stats().InUse, 2)
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	require.Equal(t, 0, pool.Stats().InUse)
}
