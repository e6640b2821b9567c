// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package store opens the PostgreSQL pool and manages the auth schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// PoolOptions tunes the connection pool. Zero values keep pgxpool defaults.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	Retries     uint64
	RetryBase   time.Duration
	PingTimeout time.Duration
}

const (
	defaultRetryBase   = 250 * time.Millisecond
	defaultPingTimeout = 3 * time.Second
)

// Connect opens a pool for databaseURL and pings it, retrying the ping with
// exponential backoff. Failures are classified as auth.ErrConnection.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(auth.Classified(auth.ErrConnection, err))
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(auth.Classified(auth.ErrConnection, err))
	}

	base := opts.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	attempt := 0
	backoff := retry.WithMaxRetries(opts.Retries, retry.NewExponential(base))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx, pool, timeout); err != nil {
			slog.WarnContext(ctx, "database ping failed",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", attempt).
			Wrap(auth.Classified(auth.ErrConnection, err))
	}
	return pool, nil
}

func ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}
