package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedDB wraps a connection pool and records a span per statement. It
// implements DatabasePool, so repositories take it interchangeably with a
// plain pool.
type TracedDB struct {
	Pool *pgxpool.Pool
}

// NewTracedDB creates a new traced database connection
func NewTracedDB(pool *pgxpool.Pool) *TracedDB {
	return &TracedDB{
		Pool: pool,
	}
}

func dbTracer() trace.Tracer {
	return otel.Tracer("database")
}

func startStatementSpan(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	return dbTracer().Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", sql),
		),
	)
}

func endStatementSpan(span trace.Span, start time.Time, err error) {
	span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Query executes a query that returns rows.
func (db *TracedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startStatementSpan(ctx, "query", sql)
	start := time.Now()

	rows, err := db.Pool.Query(ctx, sql, args...)
	endStatementSpan(span, start, err)
	return rows, err
}

// QueryRow executes a query that returns at most one row. Row errors surface
// at Scan time, so the span carries timing only.
func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startStatementSpan(ctx, "query_row", sql)
	start := time.Now()

	row := db.Pool.QueryRow(ctx, sql, args...)
	endStatementSpan(span, start, nil)
	return row
}

// Exec executes a query without returning rows.
func (db *TracedDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startStatementSpan(ctx, "exec", sql)
	start := time.Now()

	tag, err := db.Pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	endStatementSpan(span, start, err)
	return tag, err
}

// Ping verifies the connection to the database.
func (db *TracedDB) Ping(ctx context.Context) error {
	ctx, span := startStatementSpan(ctx, "ping", "")
	start := time.Now()

	err := db.Pool.Ping(ctx)
	endStatementSpan(span, start, err)
	return err
}

// Close closes the database connection pool
func (db *TracedDB) Close() {
	db.Pool.Close()
}
