package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const txKey contextKey = "db_tx"

// Querier is the subset of pgx shared by pools, connections and
// transactions. Repositories accept any of them.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Beginner starts transactions. *pgxpool.Pool and pgx.Tx both satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var ErrNoBeginner = errors.New("no database connection in context")

// ConnFromContext returns the transaction bound to ctx, or nil when the
// caller is not inside InTx. Repositories fall back to their pool on nil.
func ConnFromContext(ctx context.Context) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return nil
}

// TxFromContext retrieves the active transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction and returns a context carrying it. When ctx
// already holds a transaction a nested one (savepoint) is started instead.
func WithTx(ctx context.Context, b Beginner) (context.Context, pgx.Tx, error) {
	if outer := TxFromContext(ctx); outer != nil {
		b = outer
	}
	if b == nil {
		return ctx, nil, ErrNoBeginner
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, txKey, tx), tx, nil
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func InTx(ctx context.Context, b Beginner, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx, b)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Runner binds InTx to a Beginner so services can depend on a small
// interface instead of the pool.
type Runner struct {
	b Beginner
}

func NewRunner(b Beginner) *Runner {
	return &Runner{b: b}
}

func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return InTx(ctx, r.b, fn)
}
