package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgDB is a pool-like executor that can open transactions. Both *pgxpool.Pool and pgxmock
// pools satisfy it.
type pgDB interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// uniqueViolation is the SQLSTATE reported for duplicate keys.
const uniqueViolation = "23505"
