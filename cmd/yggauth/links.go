// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/auth"
)

func newLinksCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Inspect and administer identity links",
	}

	var user string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the identity links of a user",
		Args:  cobra.NoArgs,
	}
	list.Flags().StringVar(&user, "user", "", "canonical user id (UUID)")
	_ = list.MarkFlagRequired("user") //nolint:errcheck // flag defined above
	list.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		userID, err := parseUserID(user)
		if err != nil {
			return err
		}
		links, err := a.links.ListForUser(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printLinks(cmd, a.opts.jsonOutput, links)
	})

	byID := func(use, short string, fn func(ctx context.Context, a *app, id ulid.ULID) (*auth.IdentityLink, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " LINK_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: withApp(deps, opts, func(cmd *cobra.Command, a *app, args []string) error {
				id, err := parseLinkID(args[0])
				if err != nil {
					return err
				}
				link, err := fn(cmd.Context(), a, id)
				if err != nil {
					return err
				}
				if link == nil {
					cmd.Printf("Link %s removed\n", id)
					return nil
				}
				return printLink(cmd, a.opts.jsonOutput, link)
			}),
		}
	}

	cmd.AddCommand(
		list,
		byID("show", "Show one identity link", func(ctx context.Context, a *app, id ulid.ULID) (*auth.IdentityLink, error) {
			return a.links.Get(ctx, id)
		}),
		byID("verify", "Mark an identity link verified", func(ctx context.Context, a *app, id ulid.ULID) (*auth.IdentityLink, error) {
			return a.links.MarkVerified(ctx, id)
		}),
		byID("unverify", "Mark an identity link unverified", func(ctx context.Context, a *app, id ulid.ULID) (*auth.IdentityLink, error) {
			return a.links.MarkUnverified(ctx, id)
		}),
		byID("unlink", "Delete an identity link, leaving its credential in place", func(ctx context.Context, a *app, id ulid.ULID) (*auth.IdentityLink, error) {
			return nil, a.links.Unlink(ctx, id)
		}),
	)
	return cmd
}
