package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// TxPolicy decides how a borrowed session runs an operation's statements.
type TxPolicy int

const (
	// Autocommit runs each statement directly on the session; the driver
	// commits every successful statement immediately when no transaction is
	// open. No implicit transaction spans multiple statements.
	Autocommit TxPolicy = iota
	// ReadOnly opens a read-only transaction before the caller-supplied SQL
	// runs and rolls it back afterwards no matter what the statement did.
	// The rollback caps the blast radius even if a mutating statement is
	// pushed through a read-only tool, and releases any locks taken by
	// metadata lookups.
	ReadOnly
)

// Querier is the subset of database/sql the handlers execute against;
// satisfied by both *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunWithPolicy configures the session per policy and invokes fn with the
// statement target to use. Under ReadOnly the rollback always runs; rollback
// failures are logged and swallowed so they never mask fn's outcome.
func RunWithPolicy(ctx context.Context, conn *sql.Conn, policy TxPolicy, fn func(q Querier) error) error {
	if policy == Autocommit {
		return fn(conn)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	fnErr := fn(tx)
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		log.Printf("oracle-db-mcp: read-only rollback failed: %v", rbErr)
	}
	return fnErr
}
