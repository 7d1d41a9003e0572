// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/auth/sqlite"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/internal/xdg"
	"github.com/holomush/warden/pkg/errutil"
)

// Storage is an opened user and session backend.
type Storage struct {
	Users    auth.UserDirectory
	Sessions auth.SessionRepository
	// Ping reports whether the backend is reachable.
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator wraps the methods used by the migrate command from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StorageOpener opens the configured backend.
	// Default: openStorage
	StorageOpener func(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (*Storage, error)

	// MigratorFactory creates a migrator for a PostgreSQL URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StorageOpener == nil {
		out.StorageOpener = openStorage
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return &out
}

// app is the loaded configuration and logger shared by one command run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Deps
}

func loadApp(cmd *cobra.Command, deps *Deps) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, err //nolint:wrapcheck // config errors are already coded
	}
	logger := logging.New(logging.Options{
		Service: "warden",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	return &app{cfg: cfg, logger: logger, deps: deps.withDefaults()}, nil
}

// open opens the configured storage backend.
func (a *app) open(ctx context.Context) (*Storage, error) {
	return a.deps.StorageOpener(ctx, a.cfg.Database, a.logger)
}

func (a *app) service(st *Storage) (*auth.Service, error) {
	return auth.NewServiceWithLogger(st.Users, auth.NewArgon2idHasher(), a.logger)
}

func (a *app) strategy(st *Storage) (auth.Strategy, error) {
	return auth.NewStrategy(a.cfg.Auth.Kind(), auth.StrategyDeps{
		Users:    st.Users,
		Hasher:   auth.NewArgon2idHasher(),
		Sessions: st.Sessions,
		Session: auth.SessionConfig{
			CookieName: a.cfg.Auth.SessionName,
			TTL:        a.cfg.Auth.SessionTTL(),
		},
		Logger: a.logger,
	})
}

// sessionStrategy returns the configured strategy when it is session based.
func (a *app) sessionStrategy(st *Storage) (*auth.SessionAuth, error) {
	strategy, err := a.strategy(st)
	if err != nil {
		return nil, err
	}
	sa, ok := strategy.(*auth.SessionAuth)
	if !ok {
		return nil, oops.Code("STRATEGY_NO_SESSIONS").
			With("auth_type", a.cfg.Auth.Type).
			Errorf("auth type %q does not use sessions", a.cfg.Auth.Type)
	}
	return sa, nil
}

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

type storageRunFunc func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error

// run adapts fn to cobra, loading configuration first and logging failures
// with their error context.
func run(deps *Deps, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, deps)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := fn(ctx, cmd, a, args); err != nil {
			errutil.LogErrorContext(ctx, a.logger, cmd.CommandPath()+" failed", err)
			return err
		}
		return nil
	}
}

// withStorage is run with the storage backend opened for fn and closed after.
func withStorage(deps *Deps, fn storageRunFunc) func(*cobra.Command, []string) error {
	return run(deps, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		st, err := a.open(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(ctx, cmd, a, st, args)
	})
}

// openStorage opens the backend named by db.Driver.
func openStorage(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (*Storage, error) {
	switch db.Driver {
	case config.DriverMemory:
		return &Storage{
			Users:    memory.NewUserDirectory(),
			Sessions: memory.NewSessionRepository(),
			Ping:     func(context.Context) error { return nil },
			Close:    func() {},
		}, nil

	case config.DriverSQLite:
		if err := xdg.EnsureDir(filepath.Dir(db.Path)); err != nil {
			return nil, err //nolint:wrapcheck // xdg errors are already coded
		}
		sdb, err := sqlite.Open(ctx, db.Path)
		if err != nil {
			return nil, err //nolint:wrapcheck // sqlite errors are already coded
		}
		logger.DebugContext(ctx, "opened sqlite database", "path", db.Path)
		return &Storage{
			Users:    sdb.Users(),
			Sessions: sdb.Sessions(),
			Ping:     sdb.Ping,
			Close: func() {
				if err := sdb.Close(); err != nil {
					logger.Warn("failed to close sqlite database", "error", err)
				}
			},
		}, nil

	case config.DriverPostgres:
		attempts := db.ConnectAttempts
		if attempts < 1 {
			attempts = 1
		}
		pool, err := store.Connect(ctx, db.URL, store.ConnectOptions{
			Attempts: uint64(attempts),
			Logger:   logger,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // store errors are already coded
		}
		return &Storage{
			Users:    postgres.NewUserRepository(pool),
			Sessions: postgres.NewSessionRepository(pool),
			Ping:     pool.Ping,
			Close:    pool.Close,
		}, nil

	default:
		return nil, oops.Code("STORAGE_DRIVER_UNKNOWN").
			With("driver", db.Driver).
			Errorf("unknown database driver %q", db.Driver)
	}
}

// readPassword returns flagValue, or the first line of in when it is empty.
func readPassword(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", oops.Code("AUTH_PASSWORD_MISSING").Wrap(auth.ErrMissingPassword)
	}
	return password, nil
}
