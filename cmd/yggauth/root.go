// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile      string
	envFile         string
	metricsTextfile string
	jsonOutput      bool
}

// NewRootCmd creates the root command with the production dependencies.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "yggauth",
		Short: "Administer yggauth identities",
		Long: `yggauth manages email/password credentials, the identity links that bind
them to canonical users, and the verification workflow that proves an
address is owned before its link is trusted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/yggauth/config.yaml when present)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with secrets; ignored when absent")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	config.BindFlags(flags)

	cmd.AddCommand(
		newMigrateCmd(deps, opts),
		newRegisterCmd(deps, opts),
		newLoginCmd(deps, opts),
		newVerifyCmd(deps, opts),
		newLinksCmd(deps, opts),
		newAccountCmd(deps, opts),
		newConfigCmd(),
	)
	return cmd
}

// errRejected marks a login whose credentials did not match.
var errRejected = errors.New("credentials rejected")

// Exit codes by error class.
const (
	exitFailure    = 1
	exitRejected   = 2
	exitConflict   = 3
	exitNotFound   = 4
	exitInvalid    = 5
	exitConnection = 6
)

func exitCode(err error) int {
	if errors.Is(err, errRejected) {
		return exitRejected
	}
	if !auth.IsClassified(err) {
		return exitFailure
	}
	switch auth.Classify(err) {
	case auth.ErrConflictingAccount:
		return exitConflict
	case auth.ErrNotFound:
		return exitNotFound
	case auth.ErrInvalidAccount:
		return exitInvalid
	case auth.ErrConnection:
		return exitConnection
	default:
		return exitFailure
	}
}
