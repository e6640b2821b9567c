// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yggdrasil/yggauth/internal/store"
)

func newMigrateCmd(deps *Deps, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the auth database schema",
		Long:  `Apply, revert or inspect the embedded PostgreSQL migrations for identity links and email credentials.`,
	}

	run := func(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps, opts)
			if err != nil {
				return err
			}
			m, err := deps.NewMigrator(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }() //nolint:errcheck // command error wins
			return fn(cmd, m, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("Schema is up to date")
					return nil
				}
				if err := m.Up(); err != nil {
					return err
				}
				for _, v := range pending {
					cmd.Printf("Applied %s\n", migrationLabel(v))
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert every migration, dropping all auth tables",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations reverted")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or revert them when N is negative",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, m Migrator, args []string) error {
				n, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Steps(n); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Record VERSION as applied without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, m Migrator, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
				if err := printVersion(cmd, m); err != nil {
					return err
				}
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				cmd.Printf("Pending: %d\n", len(pending))
				return nil
			}),
		},
	)
	return cmd
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return n, nil
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(v), 10)
	}
	return name
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if v == 0 {
		cmd.Println("Version: none")
		return nil
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	cmd.Printf("Version: %s%s\n", migrationLabel(v), suffix)
	return nil
}
