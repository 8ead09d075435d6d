package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pharmalytics/pkg/logger"
)

var tracer = otel.Tracer("pharmalytics/tx")

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout caps each statement server-side. Zero leaves the
	// server default.
	StatementTimeout time.Duration
}

// ReadOnlyTxOptions returns options for analytics reads. RepeatableRead gives
// the queries of one transaction a single snapshot.
func ReadOnlyTxOptions(statementTimeout time.Duration) TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.RepeatableRead,
		AccessMode:       pgx.ReadOnly,
		StatementTimeout: statementTimeout,
	}
}

// TxManager runs functions inside database transactions with statement
// timeout protection, tracing and error classification.
type TxManager struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
}

// NewTxManager creates a new transaction manager. statementTimeout applies to
// ReadOnly transactions.
func NewTxManager(pool *Pool, statementTimeout time.Duration) *TxManager {
	return NewTxManagerFromRawPool(pool.Pool, statementTimeout)
}

// NewTxManagerFromRawPool creates a new transaction manager from raw pgxpool.Pool.
func NewTxManagerFromRawPool(pool *pgxpool.Pool, statementTimeout time.Duration) *TxManager {
	return &TxManager{pool: pool, statementTimeout: statementTimeout}
}

// txKey is the context key for active transaction.
type txKey struct{}

// ReadOnly executes fn in a read-only transaction named operation. Errors
// are classified into apperror timeout/transient/database errors.
func (m *TxManager) ReadOnly(ctx context.Context, operation string, fn func(ctx context.Context, q Querier) error) error {
	opts := ReadOnlyTxOptions(m.statementTimeout)
	err := m.RunInTransactionWithOptions(ctx, operation, opts, fn)
	return ClassifyError(operation, opts.StatementTimeout, err)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
// A transaction already present in ctx is reused.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, operation string, opts TxOptions, fn func(ctx context.Context, q Querier) error) error {
	ctx, span := tracer.Start(ctx, "db."+operation,
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(opts.AccessMode)),
		))
	defer span.End()

	if existing, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx, existing)
	}

	err := m.startNewTransaction(ctx, opts, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

// startNewTransaction begins a new database transaction.
func (m *TxManager) startNewTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context, q Querier) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Set statement timeout for protection against runaway queries
	if opts.StatementTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = tx.Rollback(context.Background())
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx, tx); err != nil {
		// Use background context for rollback to ensure it completes
		// even if the original context was cancelled
		if rbErr := tx.Rollback(context.Background()); rbErr != nil {
			logger.Debug(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Querier is satisfied by pgx.Tx, *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ping checks database reachability.
func (m *TxManager) Ping(ctx context.Context) error {
	return ClassifyError("ping", 0, m.pool.Ping(ctx))
}
