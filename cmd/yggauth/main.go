// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package main is the yggauth administrative command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/yggdrasil/yggauth/pkg/errutil"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		errutil.LogError(context.Background(), slog.Default(), "command failed", err)
		os.Exit(exitCode(err))
	}
}
