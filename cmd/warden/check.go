// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/observability"
)

// checkConfig holds the synthetic request built by the check command.
type checkConfig struct {
	email     string
	password  string
	sessionID string
	headers   []string
}

// request builds the request described by cfg. Basic credentials are added
// when an email is given.
func (cfg *checkConfig) request(cookieName string) (auth.StaticRequest, error) {
	req := auth.StaticRequest{
		Headers: make(map[string]string),
		Cookies: make(map[string]string),
	}
	for _, h := range cfg.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return req, oops.Code("CHECK_HEADER_INVALID").
				With("header", h).
				Errorf("header must be NAME: VALUE")
		}
		req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	if cfg.email != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.email + ":" + cfg.password))
		req.Headers[auth.AuthorizationHeaderName] = auth.BasicScheme + creds
	}
	if cfg.sessionID != "" {
		req.Cookies[cookieName] = cfg.sessionID
	}
	return req, nil
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	return newCheckCmd(nil)
}

func newCheckCmd(deps *Deps) *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check PATH",
		Short: "Decide whether a request for PATH is allowed",
		Long: `Run one authorization decision through the configured strategy and print
"excluded", "authenticated" or "denied". A denied request exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			return runCheck(ctx, cmd, a, st, cfg, args[0])
		}),
	}

	cmd.Flags().StringVar(&cfg.email, "user", "", "email sent as HTTP Basic credentials")
	cmd.Flags().StringVar(&cfg.password, "password", "", "password sent with --user")
	cmd.Flags().StringVar(&cfg.sessionID, "session", "", "session id sent in the session cookie")
	cmd.Flags().StringArrayVar(&cfg.headers, "header", nil, "extra request header as NAME: VALUE (repeatable)")

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, cfg *checkConfig, path string) error {
	handler, err := newCheckHandler(a, st, nil)
	if err != nil {
		return err
	}
	req, err := cfg.request(a.cfg.Auth.SessionName)
	if err != nil {
		return err
	}

	result, user, err := handler.Decide(ctx, path, req)
	switch result {
	case observability.ResultError:
		return oops.Code("CHECK_FAILED").With("path", path).Wrap(err)
	case observability.ResultDenied:
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return oops.Code("AUTH_DENIED").
			With("path", path).
			Errorf("request for %s denied", path)
	case observability.ResultAuthenticated:
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", result, user.Email)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}
	return nil
}

// newCheckHandler builds the auth check handler for the configured strategy.
func newCheckHandler(a *app, st *Storage, metrics *observability.Metrics) (*observability.CheckHandler, error) {
	strategy, err := a.strategy(st)
	if err != nil {
		return nil, err
	}
	excluded, err := auth.CompileExcludedPaths(a.cfg.Auth.ExcludedPaths)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	a.logger.Debug("auth check configured",
		"auth_type", string(a.cfg.Auth.Kind()),
		"excluded_paths", excluded.Len())
	return observability.NewCheckHandler(strategy, a.cfg.Auth.Kind(), excluded, metrics, a.logger), nil
}
