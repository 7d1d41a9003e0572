// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
)

// NewSessionCmd creates the session subcommand.
func NewSessionCmd() *cobra.Command {
	return newSessionCmd(nil)
}

func newSessionCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive the configured session strategy",
		Long: `Log in, check and log out through the configured session strategy.
Only session_db_auth keeps sessions between invocations; session_auth and
session_exp_auth hold them in process memory.`,
	}

	cmd.AddCommand(newSessionLoginCmd(deps))
	cmd.AddCommand(newSessionCheckCmd(deps))
	cmd.AddCommand(newSessionLogoutCmd(deps))

	return cmd
}

func newSessionLoginCmd(deps *Deps) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in and print the session cookie",
		Long: `Log in and print the session cookie as name=value. Strategies with a
session lifetime print it on a second line as expires_in=DURATION.`,
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			sa, err := a.sessionStrategy(st)
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			_, sessionID, err := sa.Login(ctx, args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", sa.CookieName(), sessionID)
			if ttl := sa.TTL(); ttl > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "expires_in=%s\n", ttl)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return cmd
}

func newSessionCheckCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check SESSION_ID",
		Short: "Show the user owning a session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			sa, err := a.sessionStrategy(st)
			if err != nil {
				return err
			}
			user, err := sa.CurrentUser(ctx, sessionRequest(sa, args[0]))
			if err != nil {
				return err
			}
			if user == nil {
				return oops.Code("SESSION_UNKNOWN").Errorf("session is unknown or expired")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Email, sa.Kind())
			return nil
		}),
	}
}

func newSessionLogoutCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout SESSION_ID",
		Short: "Destroy a session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			sa, err := a.sessionStrategy(st)
			if err != nil {
				return err
			}
			destroyed, err := sa.DestroySession(ctx, sessionRequest(sa, args[0]))
			if err != nil {
				return err
			}
			if !destroyed {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session destroyed")
			return nil
		}),
	}
}

func sessionRequest(sa *auth.SessionAuth, sessionID string) auth.StaticRequest {
	return auth.StaticRequest{Cookies: map[string]string{sa.CookieName(): sessionID}}
}
