// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// DefaultTxRetries is how often a transaction is re-run after a
// serialization failure or deadlock.
const DefaultTxRetries = 3

// Transactor implements auth.Transactor on a pgx pool. It stores the active
// pgx.Tx in context so that repository calls made with that context
// participate in the same transaction.
type Transactor struct {
	pool    poolIface
	retries uint64
	base    time.Duration
}

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(pool poolIface) *Transactor {
	return &Transactor{pool: pool, retries: DefaultTxRetries, base: 20 * time.Millisecond}
}

// WithRetries returns a copy of t that retries at most n times.
func (t *Transactor) WithRetries(n uint64, base time.Duration) *Transactor {
	c := *t
	c.retries, c.base = n, base
	return &c
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil the transaction is committed, otherwise it is rolled
// back. Serialization failures re-run fn. A call made with a context that
// already carries a transaction joins it.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	backoff := retry.WithMaxRetries(t.retries, retry.NewExponential(t.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.run(ctx, fn)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return ensureClassified(err)
}

func (t *Transactor) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(classify(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return ensureClassified(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(classify(err))
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
