package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRunWithPolicyReadOnlyAlwaysRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM dual").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	err = RunWithPolicy(context.Background(), conn, ReadOnly, func(q Querier) error {
		rows, qerr := q.QueryContext(context.Background(), "SELECT 1 FROM dual")
		if qerr != nil {
			return qerr
		}
		return rows.Close()
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunWithPolicyReadOnlyRollsBackAfterHandlerError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	handlerErr := errors.New("ORA-00942: table or view does not exist")
	err = RunWithPolicy(context.Background(), conn, ReadOnly, func(q Querier) error {
		return handlerErr
	})
	require.ErrorIs(t, err, handlerErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunWithPolicyRollbackFailureNeverMasksOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("ORA-03113: end-of-file on communication channel"))

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	err = RunWithPolicy(context.Background(), conn, ReadOnly, func(q Querier) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunWithPolicyAutocommitOpensNoTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// No ExpectBegin: any transaction would fail the expectations.
	mock.ExpectExec("INSERT INTO t").
		WillReturnResult(sqlmock.NewResult(0, 1))

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	err = RunWithPolicy(context.Background(), conn, Autocommit, func(q Querier) error {
		_, execErr := q.ExecContext(context.Background(), "INSERT INTO t VALUES (1)")
		return execErr
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
