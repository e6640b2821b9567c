// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
)

func newVerifyCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the email verification workflow",
	}
	cmd.AddCommand(newVerifySendCmd(deps, opts), newVerifyCheckCmd(deps, opts))
	return cmd
}

func newVerifySendCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var addr, code, description string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Issue a verification code and mail it",
		Long: `Issue a new verification code for the credential registered to --email,
replacing any outstanding code, and deliver it. Unknown addresses are
accepted silently.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	cmd.Flags().StringVar(&code, "code", "", "code to issue; generated when empty")
	cmd.Flags().StringVar(&description, "description", "", "account description shown in the message")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		err := a.provider.SendVerify(cmd.Context(), email.Account{Email: addr}, auth.VerifyInfo{
			Code:               code,
			ServiceName:        a.cfg.Verify.ServiceName,
			AccountDescription: description,
		})
		if err != nil {
			return err
		}
		cmd.Println("Verification code sent")
		return nil
	})
	return cmd
}

func newVerifyCheckCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	var addr, code string
	var mark bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a submitted verification code",
		Long: `Compare --code with the outstanding code for --email. With --mark a
matching code also marks the identity link verified.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	cmd.Flags().StringVar(&code, "code", "", "submitted code")
	cmd.Flags().BoolVar(&mark, "mark", false, "mark the identity link verified on a match")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("code")  //nolint:errcheck // flag defined above

	cmd.RunE = withApp(deps, opts, func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		ok, err := a.provider.CheckVerifyResponse(ctx, email.Account{Email: addr}, code)
		if err != nil {
			return err
		}
		if !ok {
			return oops.Code("VERIFY_REJECTED").Wrap(errRejected)
		}
		if !mark {
			cmd.Println("Code matches")
			return nil
		}

		link, err := a.provider.ResolveLink(ctx, addr)
		if err != nil {
			return err
		}
		link, err = a.links.MarkVerified(ctx, link.ID)
		if err != nil {
			return err
		}
		return printLink(cmd, a.opts.jsonOutput, link)
	})
	return cmd
}
