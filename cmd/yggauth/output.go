// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// linkView is the printed form of an identity link.
type linkView struct {
	ID           string     `json:"id"`
	ProviderName string     `json:"provider_name"`
	ProviderKey  string     `json:"provider_key"`
	UserID       string     `json:"user_id"`
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func viewOf(l *auth.IdentityLink) linkView {
	return linkView{
		ID:           l.ID.String(),
		ProviderName: l.ProviderName,
		ProviderKey:  l.ProviderKey,
		UserID:       l.UserID.String(),
		Verified:     l.IsVerified,
		VerifiedAt:   l.VerifiedAt,
		CreatedAt:    l.CreatedAt,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func printLink(cmd *cobra.Command, asJSON bool, link *auth.IdentityLink) error {
	if asJSON {
		return printJSON(cmd.OutOrStdout(), viewOf(link))
	}
	return printLinks(cmd, false, []*auth.IdentityLink{link})
}

func printLinks(cmd *cobra.Command, asJSON bool, links []*auth.IdentityLink) error {
	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, viewOf(l))
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), views)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tUSER\tVERIFIED\tCREATED")
	for _, v := range views {
		verified := "no"
		if v.Verified && v.VerifiedAt != nil {
			verified = v.VerifiedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.ProviderName, v.UserID, verified, v.CreatedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

// passwordFlags reads a secret from --<name> or, with --<name>-stdin, from
// the first line of stdin.
type passwordFlags struct {
	name      string
	value     string
	fromStdin bool
}

func bindPassword(cmd *cobra.Command, name, usage string) *passwordFlags {
	p := &passwordFlags{name: name}
	cmd.Flags().StringVar(&p.value, name, "", usage)
	cmd.Flags().BoolVar(&p.fromStdin, name+"-stdin", false, "read the "+name+" from the first line of stdin")
	cmd.MarkFlagsMutuallyExclusive(name, name+"-stdin")
	cmd.MarkFlagsOneRequired(name, name+"-stdin")
	return p
}

func (p *passwordFlags) read(cmd *cobra.Command) (string, error) {
	if !p.fromStdin {
		return p.value, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("INPUT_FAILED").With("flag", p.name+"-stdin").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseLinkID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(strings.TrimSpace(s))
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_LINK_ID").
			With("link_id", s).
			Wrap(auth.Classified(auth.ErrInvalidAccount, err))
	}
	return id, nil
}
