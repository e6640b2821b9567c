// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
	"github.com/yggdrasil/yggauth/internal/auth/postgres"
	"github.com/yggdrasil/yggauth/internal/config"
	"github.com/yggdrasil/yggauth/internal/logging"
	"github.com/yggdrasil/yggauth/internal/mail"
	"github.com/yggdrasil/yggauth/internal/store"
	"github.com/yggdrasil/yggauth/internal/xdg"
	"github.com/yggdrasil/yggauth/pkg/errutil"
)

// Backend is an opened persistence backend.
type Backend struct {
	Links       auth.LinkRepository
	Credentials email.CredentialRepository
	Transactor  auth.Transactor
	Close       func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Applied() ([]uint, error)
	Close() error
}

// Deps contains injectable dependencies for the commands.
// Nil fields use their default implementations.
type Deps struct {
	// OpenBackend connects the persistence backend.
	// Default: PostgreSQL through store.Connect.
	OpenBackend func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// NewSender builds the mail sender. out is the command's stdout.
	// Default: SMTP, or a stdout writer when smtp.host is empty.
	NewSender func(cfg *config.Config, out io.Writer) mail.Sender

	// NewMigrator opens a schema migrator.
	// Default: store.NewMigrator
	NewMigrator func(databaseURL string) (Migrator, error)

	// LookupEnv reads process environment.
	// Default: os.LookupEnv
	LookupEnv func(string) (string, bool)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openPostgres
	}
	if out.NewSender == nil {
		out.NewSender = defaultSender
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	return &out
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Backend, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		Retries:  cfg.Database.ConnectRetries,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Links:       postgres.NewLinkRepository(pool),
		Credentials: postgres.NewCredentialRepository(pool),
		Transactor:  postgres.NewTransactor(pool),
		Close:       pool.Close,
	}, nil
}

func defaultSender(cfg *config.Config, out io.Writer) mail.Sender {
	if cfg.SMTP.Host == "" {
		return mail.NewWriterSender(out)
	}
	return mail.NewSMTPSender(cfg.SMTPConfig())
}

func loadConfig(cmd *cobra.Command, deps *Deps, opts *globalOptions) (*config.Config, error) {
	file := opts.configFile
	if file == "" {
		file = xdg.ConfigFile(deps.LookupEnv)
	}
	return config.Load(config.Sources{
		File:      file,
		EnvFile:   opts.envFile,
		Flags:     cmd.Flags(),
		LookupEnv: deps.LookupEnv,
	})
}

// app is the wired object graph a command runs against.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *email.Provider
	links    *auth.LinkService
	registry *prometheus.Registry
	backend  *Backend
	opts     *globalOptions
}

func newApp(cmd *cobra.Command, deps *Deps, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(cmd, deps, opts)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(logging.Options{
		Service: "yggauth",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	}, cmd.ErrOrStderr())

	hasher, err := auth.NewHasher(cfg.HasherConfig())
	if err != nil {
		return nil, err
	}

	tmpl, err := verifyTemplate(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := deps.OpenBackend(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	provider, err := email.NewProvider(email.Deps{
		Credentials: backend.Credentials,
		Links:       backend.Links,
		Transactor:  backend.Transactor,
		Hasher:      hasher,
		Sender:      deps.NewSender(cfg, cmd.OutOrStdout()),
		From:        cfg.SMTP.From,
	},
		email.WithTemplate(tmpl),
		email.WithCodeLength(cfg.Verify.CodeLength),
		email.WithCodeTTL(cfg.Verify.CodeTTL),
		email.WithLogger(logger),
		email.WithMetrics(auth.NewMetrics(registry)),
		email.WithTracer(otel.Tracer("github.com/yggdrasil/yggauth")),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	links, err := auth.NewLinkServiceWithLogger(backend.Links, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		links:    links,
		registry: registry,
		backend:  backend,
		opts:     opts,
	}, nil
}

func verifyTemplate(cfg *config.Config) (email.Template, error) {
	subject, body := cfg.Verify.Subject, cfg.Verify.Body
	if subject == "" {
		subject = email.DefaultSubject
	}
	if body == "" {
		body = email.DefaultBody
	}
	return email.NewTextTemplate(subject, body, cfg.Verify.ContentType)
}

// close releases the backend and flushes metrics when requested.
func (a *app) close(ctx context.Context) {
	if a.opts.metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(a.opts.metricsTextfile, a.registry); err != nil {
			errutil.LogError(ctx, a.logger, "write metrics textfile", oops.Code("METRICS_WRITE_FAILED").
				With("path", a.opts.metricsTextfile).
				Wrap(err))
		}
	}
	a.backend.Close()
}

// withApp wires an app, runs fn, and tears the app down.
func withApp(deps *Deps, opts *globalOptions, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, deps, opts)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		return fn(cmd, a, args)
	}
}
