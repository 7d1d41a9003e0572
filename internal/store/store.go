// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store connects to PostgreSQL and manages the auth schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 200 * time.Millisecond
)

// ConnectOptions tunes Connect. Zero values use the defaults.
type ConnectOptions struct {
	// Attempts is the total number of connection attempts.
	Attempts uint64
	// Backoff is the first retry delay. Later delays double.
	Backoff time.Duration
	Logger  *slog.Logger
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Attempts == 0 {
		o.Attempts = DefaultConnectAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultConnectBackoff
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Connect opens a pgx pool for dsn and pings it, retrying with exponential
// backoff while the database is unreachable. A malformed dsn fails at once.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}

	var pool *pgxpool.Pool
	err = withRetry(ctx, opts, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("database", cfg.ConnConfig.Database).
			Wrap(err)
	}
	return pool, nil
}

// withRetry runs attempt until it succeeds, ctx ends, or the attempts run
// out. Every attempt error is treated as retryable.
func withRetry(ctx context.Context, opts ConnectOptions, attempt func(context.Context) error) error {
	opts = opts.withDefaults()
	backoff := retry.WithMaxRetries(opts.Attempts-1, retry.NewExponential(opts.Backoff))

	var tries uint64
	//nolint:wrapcheck // caller wraps
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		if err := attempt(ctx); err != nil {
			opts.Logger.DebugContext(ctx, "database not ready, retrying",
				"attempt", tries,
				"max_attempts", opts.Attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
