// Package dbx holds the database plumbing shared by the repositories: the
// DBTX handle that both *sql.DB and *sql.Tx satisfy, the transaction runner
// and PostgreSQL error helpers.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; panics are re-raised after the
// rollback. Row locks taken with SELECT ... FOR UPDATE inside fn are held
// until WithTx returns.
//
// Business outcomes that must not undo writes (a failed login still bumps
// the failure counter) are carried out of fn in a variable while fn
// returns nil:
//
//	var outcome error
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    a, err := accounts(tx).GetByIDForUpdate(ctx, id)
//	    if err != nil {
//	        return err
//	    }
//	    if !verify(a) {
//	        a.FailedLoginAttempts++
//	        outcome = common.ErrInvalidCredentials
//	    }
//	    return accounts(tx).Update(ctx, a)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
