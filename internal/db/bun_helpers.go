package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// execRawProvider is a small interface used to accept either *bun.DB or bun.Tx
// since both expose NewRaw(...).* methods returning *bun.RawQuery.
type execRawProvider interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement using the provided Bun DB or transaction.
// It returns the standard sql.Result to match existing call sites.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...interface{}) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest using Bun's RawQuery.Scan.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest interface{}, query string, args ...interface{}) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}

// WithTx runs fn inside a transaction on the given Bun DB, committing on nil
// error and rolling back otherwise.
func WithTx(ctx context.Context, bdb *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return bdb.RunInTx(ctx, nil, fn)
}

// Savepoint opens a named savepoint on the given transaction. Savepoint
// names are generated by callers and must be valid SQL identifiers.
func Savepoint(ctx context.Context, tx bun.Tx, name string) error {
	_, err := ExecRaw(ctx, tx, fmt.Sprintf("SAVEPOINT %s", name))
	return err
}

// ReleaseSavepoint releases a named savepoint, keeping its effects.
func ReleaseSavepoint(ctx context.Context, tx bun.Tx, name string) error {
	_, err := ExecRaw(ctx, tx, fmt.Sprintf("RELEASE SAVEPOINT %s", name))
	return err
}

// RollbackToSavepoint discards all effects since the named savepoint was
// opened. The savepoint itself stays open and is released by the caller.
func RollbackToSavepoint(ctx context.Context, tx bun.Tx, name string) error {
	_, err := ExecRaw(ctx, tx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name))
	return err
}
