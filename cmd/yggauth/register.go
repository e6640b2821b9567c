// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"errors"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
)

func newRegisterCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var addr, user string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an email credential for a user",
		Long: `Create an email/password credential and its unverified identity link in one
transaction. Without --user a new user id is generated.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	cmd.Flags().StringVar(&user, "user", "", "canonical user id (UUID)")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above
	pw := bindPassword(cmd, "password", "account password")

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		userID, err := parseUserID(user)
		if err != nil {
			return err
		}
		password, err := pw.read(cmd)
		if err != nil {
			return err
		}

		link, err := a.provider.TryRegister(cmd.Context(), email.Account{Email: addr, Password: password}, userID)
		if err != nil {
			return err
		}
		return printLink(cmd, a.opts.jsonOutput, link)
	})
	return cmd
}

func newLoginCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check an email/password pair and print its identity link",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above
	pw := bindPassword(cmd, "password", "account password")

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		password, err := pw.read(cmd)
		if err != nil {
			return err
		}

		link, err := a.provider.TryLogin(cmd.Context(), email.Account{Email: addr, Password: password})
		if err != nil {
			return err
		}
		if link == nil {
			return oops.Code("LOGIN_REJECTED").Wrap(errRejected)
		}
		return printLink(cmd, a.opts.jsonOutput, link)
	})
	return cmd
}

func parseUserID(s string) (uuid.UUID, error) {
	if s == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, oops.Code("USER_ID_FAILED").Wrap(err)
		}
		return id, nil
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = errors.New("user id cannot be nil")
		}
		return uuid.Nil, oops.Code("INVALID_USER_ID").
			With("user_id", s).
			Wrap(auth.Classified(auth.ErrInvalidAccount, err))
	}
	return id, nil
}
