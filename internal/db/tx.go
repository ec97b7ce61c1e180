package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// Runner executes a function inside a database transaction. The in-memory
// implementation used by service tests serializes calls the way the
// organization row lock does in Postgres.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner is the Postgres Runner. Transactions run at repeatable read so a
// concurrently committed write to a row read in this transaction aborts it
// instead of silently losing the update.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a Runner backed by the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx runs fn inside a transaction, injecting the transaction into the
// context so repositories resolve it via QuerierFrom. Rolls back on error or
// panic; commits otherwise.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ctx = context.WithValue(ctx, txKey{}, tx)
	if err = fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RunInTxRetry runs fn via RunInTx, retrying up to attempts times on
// serialization failures with a short backoff. The final error is returned
// unwrapped so callers can classify it.
func (r *TxRunner) RunInTxRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = r.RunInTx(ctx, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 10 * time.Millisecond):
		}
	}
	return err
}

// QuerierFrom returns the transaction stored in ctx by RunInTx, or fallback
// when ctx carries no transaction.
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}
