package postgres

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pharmalytics/internal/core/apperror"
)

// SQLSTATE codes that indicate the server or connection, not the query, is
// at fault.
var transientSQLStates = map[string]bool{
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"08001": true, // sqlclient_unable_to_establish_sqlconnection
	"08004": true, // sqlserver_rejected_establishment_of_sqlconnection
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// sqlStateQueryCanceled is raised when statement_timeout fires.
const sqlStateQueryCanceled = "57014"

// ClassifyError maps driver errors to apperror kinds:
//   - connectivity failures become transient (retryable) errors;
//   - statement_timeout cancellations become timeout errors;
//   - context errors pass through unchanged for the caller's deadline logic;
//   - anything else becomes a database error.
//
// Errors that already are AppErrors are returned as is.
func ClassifyError(operation string, statementTimeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateQueryCanceled:
			return apperror.NewTimeout(operation, statementTimeout).WithCause(err)
		case transientSQLStates[pgErr.Code]:
			return apperror.NewTransient(operation, err)
		default:
			return apperror.NewDatabase(operation, err)
		}
	}

	if isConnectivityError(err) {
		return apperror.NewTransient(operation, err)
	}
	return apperror.NewDatabase(operation, err)
}

func isConnectivityError(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed)
}
