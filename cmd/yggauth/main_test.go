// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yggdrasil/yggauth/internal/auth"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"migrate", "register", "login", "verify", "links", "account", "config"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"config", "env-file", "metrics-textfile", "json", "database-url", "hash-algorithm", "code-ttl"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
	assert.Equal(t, ".env", cmd.PersistentFlags().Lookup("env-file").DefValue)
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rejected", oops.Code("LOGIN_REJECTED").Wrap(errRejected), exitRejected},
		{"conflict", oops.Code("AUTH_CONFLICTING_ACCOUNT").Wrap(auth.ErrConflictingAccount), exitConflict},
		{"not found", auth.Classified(auth.ErrNotFound, errors.New("no row")), exitNotFound},
		{"invalid", auth.ErrInvalidAccount, exitInvalid},
		{"connection", oops.Wrap(auth.ErrConnection), exitConnection},
		{"database", auth.ErrDatabase, exitFailure},
		{"send", auth.ErrVerifySend, exitFailure},
		{"unclassified", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
