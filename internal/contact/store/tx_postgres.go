package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "identify/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx runs a consolidation inside one database transaction. The
// transaction travels in the context so PostgresStore picks it up.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx builds a transaction runner. A zero timeout uses the default
// when the caller's context has no deadline of its own.
func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &PostgresTx{db: db, timeout: timeout}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
// Calls made with a context that already carries a transaction join it.
func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if txcontext.InTx(ctx) {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InMemoryTx satisfies the same contract for the in-memory store, whose
// methods are individually atomic.
type InMemoryTx struct{}

func NewInMemoryTx() InMemoryTx {
	return InMemoryTx{}
}

func (InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
