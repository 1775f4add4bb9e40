package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "senderguard/pkg/domain-errors"
	txcontext "senderguard/pkg/platform/tx"
)

const defaultBlocklistTxTimeout = 5 * time.Second

// blocklistPostgresTx runs the entry write and its audit record in one
// transaction. Both postgres stores pick the transaction up from ctx.
type blocklistPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newBlocklistPostgresTx(db *sql.DB, timeout time.Duration) *blocklistPostgresTx {
	return &blocklistPostgresTx{db: db, timeout: timeout}
}

func (t *blocklistPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultBlocklistTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
