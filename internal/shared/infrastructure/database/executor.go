package database

import (
	"context"
	"database/sql"
)

// Row is the single-row result shared by pgx and database/sql.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the multi-row result shared by pgx and database/sql.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports what an Exec changed.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs statements on a connection or inside a transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that must be finished with Commit or Rollback.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pooled handle to the record store.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

type sqlRows struct {
	*sql.Rows
}

// WrapSQLRows adapts *sql.Rows to Rows.
func WrapSQLRows(r *sql.Rows) Rows {
	return sqlRows{Rows: r}
}

// WrapSQLResult adapts sql.Result to Result.
func WrapSQLResult(r sql.Result) Result {
	return r
}
