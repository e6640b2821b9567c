// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yggdrasil/yggauth/internal/auth/memory"
	"github.com/yggdrasil/yggauth/internal/config"
	"github.com/yggdrasil/yggauth/internal/mail"
)

// fastHashConfig keeps argon2id cheap so command tests stay quick.
const fastHashConfig = `log:
  level: error
hash:
  argon2:
    time: 1
    memory_kib: 64
    threads: 1
`

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

// harness runs the root command against an in-memory backend.
type harness struct {
	t          *testing.T
	store      *memory.Store
	sender     *recordingSender
	migrator   *fakeMigrator
	deps       *Deps
	env        map[string]string
	// configFile is passed as --config when non-empty.
	configFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		store:    memory.NewStore(),
		sender:   &recordingSender{},
		migrator: &fakeMigrator{versions: []uint{1, 2}},
	}
	h.configFile = filepath.Join(t.TempDir(), "yggauth.yaml")
	require.NoError(t, os.WriteFile(h.configFile, []byte(fastHashConfig), 0o600))

	h.env = map[string]string{"DATABASE_URL": "postgres://yggauth@localhost/yggauth"}
	h.deps = &Deps{
		OpenBackend: func(_ context.Context, _ *config.Config) (*Backend, error) {
			return &Backend{
				Links:       h.store.LinkRepository(),
				Credentials: h.store.CredentialRepository(),
				Transactor:  h.store,
				Close:       func() {},
			}, nil
		},
		NewSender: func(_ *config.Config, _ io.Writer) mail.Sender { return h.sender },
		NewMigrator: func(url string) (Migrator, error) {
			h.migrator.url = url
			return h.migrator, nil
		},
		LookupEnv: func(key string) (string, bool) {
			v, ok := h.env[key]
			return v, ok
		},
	}
	return h
}

// run executes args and returns everything written to stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()

	cmd := newRootCmd(h.deps)
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{"--env-file="}
	if h.configFile != "" {
		base = append(base, "--config", h.configFile)
	}
	cmd.SetArgs(append(base, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun fails the test when the command errors.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, "yggauth %s", strings.Join(args, " "))
	return out
}

func decodeLink(t *testing.T, out string) linkView {
	t.Helper()
	var v linkView
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

func decodeLinks(t *testing.T, out string) []linkView {
	t.Helper()
	var v []linkView
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}
