// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/observability"
)

// CheckPath is where the serve command mounts the auth check handler.
const CheckPath = "/auth/check"

const (
	readinessTimeout = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve auth checks, metrics and health probes",
		Long: `Serve reverse-proxy auth subrequests on ` + CheckPath + ` alongside
/metrics, /healthz/liveness and /healthz/readiness. The path being authorized
is read from the X-Original-URI header or the path query parameter.`,
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, _ []string) error {
			return runServe(ctx, cmd, a, st)
		}),
	}
}

// newCheckServer builds the observability server with the check handler
// mounted. Readiness follows the storage backend.
func newCheckServer(a *app, st *Storage) (*observability.Server, error) {
	server := observability.NewServer(a.cfg.Metrics.Addr, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return st.Ping(ctx) == nil
	})
	handler, err := newCheckHandler(a, st, server.Metrics())
	if err != nil {
		return nil, err
	}
	server.Handle(CheckPath, handler)
	return server, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app, st *Storage) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server, err := newCheckServer(a, st)
	if err != nil {
		return err
	}
	errCh, err := server.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("addr", a.cfg.Metrics.Addr).Wrap(err)
	}

	a.logger.Info("warden serving",
		"addr", server.Addr(),
		"auth_type", a.cfg.Auth.Type,
		"driver", a.cfg.Database.Driver,
	)
	cmd.Println("warden serving on " + server.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig)
	case err, ok := <-errCh:
		if ok && err != nil {
			serveErr = oops.Code("SERVER_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("error stopping server", "error", err)
	}

	a.logger.Info("shutdown complete")
	return serveErr
}
