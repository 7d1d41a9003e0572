// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL schema migrations",
		Long: `Manage the PostgreSQL schema for users and user sessions. With no
subcommand all pending migrations are applied. SQLite creates its schema
when the database is opened and needs no migrations.`,
		Args: cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			return migrateUp(cmd.OutOrStdout(), m)
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			return migrateUp(cmd.OutOrStdout(), m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			if err := m.Down(); err != nil {
				return err //nolint:wrapcheck // migrator errors are already coded
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, args []string) error {
			n, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return oops.Code("INVALID_STEPS").With("input", args[0]).Wrap(err)
			}
			if err := m.Steps(n); err != nil {
				return err //nolint:wrapcheck // migrator errors are already coded
			}
			return printVersion(cmd.OutOrStdout(), m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			return printVersion(cmd.OutOrStdout(), m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this to
recover after a failed migration has been repaired by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err //nolint:wrapcheck // migrator errors are already coded
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forced version %d\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			status, err := m.Status()
			if err != nil {
				return err //nolint:wrapcheck // migrator errors are already coded
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		}),
	})

	return cmd
}

// withMigrator runs fn with a migrator for the configured PostgreSQL URL.
func withMigrator(deps *Deps, fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
	return run(deps, func(_ context.Context, cmd *cobra.Command, a *app, args []string) error {
		if a.cfg.Database.Driver != config.DriverPostgres {
			return oops.Code("MIGRATE_UNSUPPORTED").
				With("driver", a.cfg.Database.Driver).
				Errorf("migrations apply to the postgres driver only, not %q", a.cfg.Database.Driver)
		}
		m, err := a.deps.MigratorFactory(a.cfg.Database.URL)
		if err != nil {
			return err //nolint:wrapcheck // migrator errors are already coded
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				a.logger.Warn("failed to close migrator", "error", closeErr)
			}
		}()
		return fn(cmd, m, args)
	})
}

func migrateUp(out io.Writer, m Migrator) error {
	fmt.Fprintln(out, "Running migrations...")
	if err := m.Up(); err != nil {
		return err //nolint:wrapcheck // migrator errors are already coded
	}
	fmt.Fprintln(out, "Migrations completed successfully")
	return printVersion(out, m)
}

func printVersion(out io.Writer, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // migrator errors are already coded
	}
	if dirty {
		fmt.Fprintf(out, "Schema version: %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(out, "Schema version: %d\n", v)
	return nil
}

func printStatus(out io.Writer, status store.MigrationStatus) {
	state := "clean"
	if status.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(out, "Schema version: %d (%s)\n", status.Version, state)
	for _, v := range status.Applied {
		name, _ := store.MigrationName(v)
		fmt.Fprintf(out, "  applied  %s\n", name)
	}
	for _, v := range status.Pending {
		name, _ := store.MigrationName(v)
		fmt.Fprintf(out, "  pending  %s\n", name)
	}
}

// parseForceVersion reads the leading integer of input.
func parseForceVersion(input string) (int, error) {
	if strings.TrimSpace(input) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var v int
	if _, err := fmt.Sscanf(input, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", input).Wrap(err)
	}
	return v, nil
}
