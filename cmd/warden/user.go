// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	return newUserCmd(nil)
}

func newUserCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users, account sessions and password resets",
		Long: `Manage users in the configured store. Account sessions created here live
on the user record, so a user has at most one at a time.`,
	}

	cmd.AddCommand(newUserRegisterCmd(deps))
	cmd.AddCommand(newUserLoginCmd(deps))
	cmd.AddCommand(newUserWhoamiCmd(deps))
	cmd.AddCommand(newUserLogoutCmd(deps))
	cmd.AddCommand(newUserResetTokenCmd(deps))
	cmd.AddCommand(newUserSetPasswordCmd(deps))

	return cmd
}

func newUserRegisterCmd(deps *Deps) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register EMAIL",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			user, err := svc.RegisterUser(ctx, args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Email, user.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return cmd
}

func newUserLoginCmd(deps *Deps) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Check a password and start an account session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			valid, err := svc.ValidLogin(ctx, args[0], pw)
			if err != nil {
				return err
			}
			if !valid {
				return oops.Code("LOGIN_REJECTED").
					With("email", args[0]).
					Errorf("invalid email or password")
			}
			sessionID, err := svc.CreateSession(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sessionID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return cmd
}

func newUserWhoamiCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami SESSION_ID",
		Short: "Show the user owning an account session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			user, err := svc.GetUserFromSessionID(ctx, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return oops.Code("SESSION_UNKNOWN").Errorf("no user holds this session")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.Email)
			return nil
		}),
	}
}

func newUserLogoutCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout SESSION_ID",
		Short: "End an account session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			user, err := svc.GetUserFromSessionID(ctx, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
				return nil
			}
			if err := svc.DestroySession(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged out %s\n", user.Email)
			return nil
		}),
	}
}

func newUserResetTokenCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-token EMAIL",
		Short: "Issue a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			token, err := svc.GetResetPasswordToken(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}),
	}
}

func newUserSetPasswordCmd(deps *Deps) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set-password RESET_TOKEN",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(deps, func(ctx context.Context, cmd *cobra.Command, a *app, st *Storage, args []string) error {
			svc, err := a.service(st)
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			if err := svc.UpdatePassword(ctx, args[0], pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (read from stdin when empty)")
	return cmd
}
