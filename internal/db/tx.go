package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx starts a transaction, runs fn, and commits if fn returns nil.
// If fn returns an error (or panics) the transaction is rolled back and the
// error from fn is returned unchanged.
func WithTx(ctx context.Context, d *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	if d == nil {
		return errors.New("db: nil handle")
	}
	tx, err := d.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "db: begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = errors.Wrap(e, "db: commit")
		}
	}()
	err = fn(tx)
	return
}
