// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// credentialView is the printed form of an email credential. The password
// hash and the outstanding code are never printed.
type credentialView struct {
	Email        string     `json:"email"`
	ProviderKey  string     `json:"provider_key"`
	Verification string     `json:"verification"`
	CodeSentAt   *time.Time `json:"code_sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LinkID       string     `json:"link_id,omitempty"`
	LinkVerified bool       `json:"link_verified"`
	LinkUserID   string     `json:"user_id,omitempty"`
}

func newAccountCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Administer email credentials",
	}
	cmd.AddCommand(
		newAccountShowCmd(deps, opts),
		newAccountPasswdCmd(deps, opts),
		newAccountRenameCmd(deps, opts),
		newAccountRotateKeyCmd(deps, opts),
		newAccountDeleteCmd(deps, opts),
	)
	return cmd
}

func emailFlag(cmd *cobra.Command) *string {
	var addr string
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above
	return &addr
}

func newAccountShowCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a credential and its identity link",
		Args:  cobra.NoArgs,
	}
	addr := emailFlag(cmd)

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		cred, err := a.provider.Credential(ctx, *addr)
		if err != nil {
			return err
		}
		view := credentialView{
			Email:        cred.Email,
			ProviderKey:  cred.ProviderKey.String(),
			Verification: cred.Challenge().State().String(),
			CodeSentAt:   cred.CodeSentAt,
			CreatedAt:    cred.CreatedAt,
			UpdatedAt:    cred.UpdatedAt,
		}
		if link, err := a.provider.ResolveLink(ctx, *addr); err == nil {
			view.LinkID = link.ID.String()
			view.LinkVerified = link.IsVerified
			view.LinkUserID = link.UserID.String()
		} else {
			a.logger.WarnContext(ctx, "credential has no identity link", "error", err)
		}

		if a.opts.jsonOutput {
			return printJSON(cmd.OutOrStdout(), view)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Email:        %s\n", view.Email)
		fmt.Fprintf(out, "Provider key: %s\n", view.ProviderKey)
		fmt.Fprintf(out, "Verification: %s\n", view.Verification)
		if view.LinkID != "" {
			fmt.Fprintf(out, "Link:         %s (user %s, verified %t)\n", view.LinkID, view.LinkUserID, view.LinkVerified)
		}
		return nil
	})
	return cmd
}

func newAccountPasswdCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Replace the password of a credential",
		Args:  cobra.NoArgs,
	}
	addr := emailFlag(cmd)
	pw := bindPassword(cmd, "new-password", "new password")

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		password, err := pw.read(cmd)
		if err != nil {
			return err
		}
		if err := a.provider.ChangePassword(cmd.Context(), *addr, password); err != nil {
			return err
		}
		cmd.Println("Password changed")
		return nil
	})
	return cmd
}

func newAccountRenameCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var newAddr string
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Change the email address of a credential",
		Args:  cobra.NoArgs,
	}
	addr := emailFlag(cmd)
	cmd.Flags().StringVar(&newAddr, "new-email", "", "new email address")
	_ = cmd.MarkFlagRequired("new-email") //nolint:errcheck // flag defined above

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		if err := a.provider.ChangeEmail(cmd.Context(), *addr, newAddr); err != nil {
			return err
		}
		cmd.Printf("Renamed %s to %s\n", *addr, newAddr)
		return nil
	})
	return cmd
}

func newAccountRotateKeyCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Assign a new provider key to a credential and its link",
		Args:  cobra.NoArgs,
	}
	addr := emailFlag(cmd)

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		link, err := a.provider.RotateKey(cmd.Context(), *addr)
		if err != nil {
			return err
		}
		return printLink(cmd, a.opts.jsonOutput, link)
	})
	return cmd
}

func newAccountDeleteCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a credential together with its identity link",
		Args:  cobra.NoArgs,
	}
	addr := emailFlag(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		if !yes {
			return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to delete %s without --yes", *addr)
		}
		if err := a.provider.DeleteAccount(cmd.Context(), *addr); err != nil {
			return err
		}
		cmd.Printf("Deleted %s\n", *addr)
		return nil
	})
	return cmd
}
