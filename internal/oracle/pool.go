// Package oracle provides the Oracle session pool, transaction policies and
// statement execution used by the MCP tool handlers.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/godror/godror"

	"github.com/alvin/oracle-db-mcp/internal/config"
)

// ErrAcquireTimeout is returned by Acquire when no session becomes free
// within the configured wait interval. It is deliberately distinct from
// statement errors so callers can tell pool exhaustion from SQL failures.
var ErrAcquireTimeout = errors.New("timed out waiting for a pooled connection")

// Pool is a bounded pool of authenticated Oracle sessions. Sessions are
// handed out one per logical operation through WithConnection and returned
// afterward; they are never shared across concurrent operations.
type Pool struct {
	db             *sql.DB
	user           string
	acquireTimeout time.Duration
}

// Open creates the pool for the given descriptor and sizing, and verifies
// connectivity with a ping. Called exactly once at process start; a failure
// here is fatal to the process (database unreachability at startup is
// unrecoverable, there is no retry).
func Open(desc *config.Descriptor, cfg config.PoolConfig) (*Pool, error) {
	var params godror.ConnectionParams
	params.Username = desc.User
	params.Password = godror.NewPassword(desc.Password)
	params.ConnectString = desc.ConnectString()
	params.MinSessions = cfg.MinSessions
	params.MaxSessions = cfg.MaxSessions
	params.SessionIncrement = cfg.SessionIncrement
	params.SessionTimeout = cfg.IdleTimeout()
	params.WaitTimeout = cfg.AcquireTimeout()

	db := sql.OpenDB(godror.NewConnector(params))
	// Mirror the session pool bound at the database/sql layer so excess
	// acquires queue here instead of piling up in the driver.
	db.SetMaxOpenConns(cfg.MaxSessions)
	db.SetMaxIdleConns(cfg.MinSessions)
	db.SetConnMaxIdleTime(cfg.IdleTimeout())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Pool{
		db:             db,
		user:           desc.User,
		acquireTimeout: cfg.AcquireTimeout(),
	}, nil
}

// NewPoolFromDB wraps an existing database handle. Used by tests.
func NewPoolFromDB(db *sql.DB, user string, acquireTimeout time.Duration) *Pool {
	return &Pool{db: db, user: user, acquireTimeout: acquireTimeout}
}

// User returns the session user the pool authenticated as.
func (p *Pool) User() string {
	return p.user
}

// Close closes the pool and all its sessions.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Acquire returns a dedicated session, waiting up to the configured acquire
// timeout when the pool is exhausted. On timeout it returns ErrAcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrAcquireTimeout
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Release returns a session to the pool. Release failures are logged and
// never surfaced; they must not mask the operation's outcome.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		log.Printf("oracle-db-mcp: connection release failed: %v", err)
	}
}

// WithConnection acquires a session, invokes fn and releases the session on
// every exit path. This is the sole acquisition path for operation handlers;
// no handler holds a connection outside this scope.
func (p *Pool) WithConnection(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// Stats exposes the underlying pool counters; used by tests to verify the
// release discipline.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}
