// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration format",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON Schema of the configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := config.Schema()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			},
		},
		&cobra.Command{
			Use:   "validate FILE",
			Short: "Check a configuration file against the schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return oops.Code("CONFIG_LOAD_FAILED").With("file", args[0]).Wrap(err)
				}
				if err := config.ValidateYAML(data); err != nil {
					return err
				}
				cmd.Printf("%s is valid\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
