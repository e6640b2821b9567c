// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package email

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/mail"
)

// ProviderName is recorded as IdentityLink.ProviderName for email credentials.
const ProviderName = "inner_email_provider"

// Deps holds the collaborators a Provider requires.
type Deps struct {
	Credentials CredentialRepository
	Links       auth.LinkRepository
	Transactor  auth.Transactor
	Hasher      auth.PasswordHasher
	Sender      mail.Sender
	// From is the sender address of verification messages.
	From string
}

// Option configures optional Provider behavior.
type Option func(*Provider)

// WithTemplate sets the verification message template.
func WithTemplate(t Template) Option {
	return func(p *Provider) { p.template = t }
}

// WithCodeLength sets the length of generated verification codes.
func WithCodeLength(n int) Option {
	return func(p *Provider) { p.codeLength = n }
}

// WithCodeTTL makes codes older than ttl stop matching. Zero disables expiry.
func WithCodeTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.codeTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithMetrics enables operation metrics.
func WithMetrics(m *auth.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Provider) { p.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider authenticates email/password accounts.
type Provider struct {
	credentials CredentialRepository
	links       auth.LinkRepository
	tx          auth.Transactor
	hasher      auth.PasswordHasher
	sender      mail.Sender
	from        string

	template   Template
	codeLength int
	codeTTL    time.Duration
	logger     *slog.Logger
	metrics    *auth.Metrics
	tracer     trace.Tracer
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewProvider creates a Provider. Every field of deps is required.
func NewProvider(deps Deps, opts ...Option) (*Provider, error) {
	switch {
	case deps.Credentials == nil:
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("credential repository is required")
	case deps.Links == nil:
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("link repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("password hasher is required")
	case deps.Sender == nil:
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("mail sender is required")
	}
	if _, err := mail.ParseAddress("from", deps.From); err != nil {
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").With("from", deps.From).Wrap(err)
	}

	p := &Provider{
		credentials: deps.Credentials,
		links:       deps.Links,
		tx:          deps.Transactor,
		hasher:      deps.Hasher,
		sender:      deps.Sender,
		from:        deps.From,
		codeLength:  auth.DefaultCodeLength,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer(""),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.template == nil {
		p.template = DefaultTemplate()
	}
	if p.codeLength <= 0 || p.codeLength > auth.MaxCodeLength {
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").
			With("code_length", p.codeLength).
			Errorf("code length must be between 1 and %d", auth.MaxCodeLength)
	}
	if p.codeTTL < 0 {
		return nil, oops.Code("EMAIL_PROVIDER_INVALID").Errorf("code ttl cannot be negative")
	}
	return p, nil
}

// Name returns ProviderName.
func (p *Provider) Name() string { return ProviderName }

// TryLogin returns the link for a matching email and password.
// Unknown emails and wrong passwords both return (nil, nil).
func (p *Provider) TryLogin(ctx context.Context, account Account) (link *auth.IdentityLink, err error) {
	ctx, span := p.startSpan(ctx, "TryLogin")
	defer func() { p.finish(span, auth.OpLogin, link != nil, err) }()

	account = account.Normalize()
	cred, err := p.credentials.GetByEmail(ctx, account.Email)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get credential").
				With("provider", ProviderName).
				Wrap(err)
		}
		// Unknown email: spend the same verify cost as a wrong password.
		p.verifyDummy(account.Password)
		return nil, nil
	}

	ok, err := p.verify(account.Password, cred.PasswordHash, auth.OpLogin)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("provider", ProviderName).
			Wrap(auth.EnsureClass(err, auth.ErrVerifyAlgorithm))
	}
	if !ok {
		return nil, nil
	}

	link, err = p.links.GetByKey(ctx, ProviderName, cred.LinkKey())
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			p.logger.ErrorContext(ctx, "credential has no identity link",
				"provider", ProviderName,
				"provider_key", cred.LinkKey())
			return nil, nil
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get identity link").
			With("provider", ProviderName).
			Wrap(err)
	}
	return link, nil
}

// TryRegister creates a credential and its unverified identity link for userID.
func (p *Provider) TryRegister(ctx context.Context, account Account, userID uuid.UUID) (link *auth.IdentityLink, err error) {
	ctx, span := p.startSpan(ctx, "TryRegister")
	defer func() { p.finish(span, auth.OpRegister, link != nil, err) }()

	account = account.Normalize()
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").
			With("provider", ProviderName).
			Wrap(auth.Classified(auth.ErrInvalidAccount, errors.New("user id is required")))
	}

	// Advisory pre-check; the insert below is authoritative.
	switch _, err := p.credentials.GetByEmail(ctx, account.Email); {
	case err == nil:
		return nil, oops.Code("AUTH_CONFLICTING_ACCOUNT").
			With("provider", ProviderName).
			Wrap(auth.ErrConflictingAccount)
	case !errors.Is(err, auth.ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing credential").
			With("provider", ProviderName).
			Wrap(err)
	}

	hash, err := p.hash(ctx, account.Password, auth.OpRegister)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			With("provider", ProviderName).
			Wrap(auth.EnsureClass(err, auth.ErrVerifyAlgorithm))
	}

	key, err := uuid.NewRandom()
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "generate provider key").
			Wrap(auth.Classified(auth.ErrDatabase, err))
	}

	cred := NewCredential(account.Email, hash, key, p.now())
	link, err = auth.NewIdentityLink(ProviderName, cred.LinkKey(), userID)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create identity link").
			Wrap(auth.Classified(auth.ErrDatabase, err))
	}
	link.CreatedAt = cred.CreatedAt

	err = p.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := p.credentials.Create(ctx, cred); err != nil {
			return err
		}
		return p.links.Create(ctx, link)
	})
	if err != nil {
		if auth.IsConflict(err) {
			return nil, oops.Code("AUTH_CONFLICTING_ACCOUNT").
				With("provider", ProviderName).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist account").
			With("provider", ProviderName).
			Wrap(err)
	}

	p.logger.InfoContext(ctx, "account registered",
		"provider", ProviderName,
		"link_id", link.ID.String(),
		"user_id", userID.String())
	return link, nil
}

// SendVerify records a fresh verification code for account and mails it.
// An unknown email returns nil without sending anything.
func (p *Provider) SendVerify(ctx context.Context, account Account, info auth.VerifyInfo) (err error) {
	ctx, span := p.startSpan(ctx, "SendVerify")
	defer func() { p.finish(span, auth.OpSendVerify, true, err) }()

	account = account.Normalize()
	to, err := mail.ParseAddress("to", account.Email)
	if err != nil {
		return oops.Code("AUTH_VERIFY_SEND_FAILED").
			With("provider", ProviderName).
			Wrap(auth.Classified(auth.ErrVerifySend, err))
	}

	cred, err := p.credentials.GetByEmail(ctx, account.Email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			p.logger.DebugContext(ctx, "verification requested for unknown account", "provider", ProviderName)
			return nil
		}
		return oops.Code("AUTH_VERIFY_SEND_FAILED").
			With("operation", "get credential").
			With("provider", ProviderName).
			Wrap(err)
	}

	code := info.Code
	if code == "" {
		if code, err = auth.GenerateCode(p.codeLength); err != nil {
			return oops.Code("AUTH_VERIFY_SEND_FAILED").
				With("operation", "generate code").
				Wrap(auth.Classified(auth.ErrVerifySend, err))
		}
	}

	content, err := p.template.Render(TemplateData{
		Code:               code,
		ServiceName:        info.ServiceName,
		AccountDescription: info.AccountDescription,
		Email:              cred.Email,
	})
	if err != nil {
		return oops.Code("AUTH_VERIFY_SEND_FAILED").
			With("operation", "render message").
			Wrap(auth.Classified(auth.ErrVerifySend, err))
	}

	// The code is stored before delivery. A failed send leaves it outstanding
	// until the next SendVerify replaces it.
	if err := p.credentials.SetVerifyCode(ctx, cred.Email, auth.IssueChallenge(code, p.now())); err != nil {
		return oops.Code("AUTH_VERIFY_SEND_FAILED").
			With("operation", "record code").
			With("provider", ProviderName).
			Wrap(err)
	}

	msg := mail.Message{
		From:        p.from,
		To:          to.Address,
		Subject:     content.Subject,
		Body:        content.Body,
		ContentType: content.ContentType,
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return oops.Code("AUTH_VERIFY_SEND_FAILED").
			With("operation", "deliver message").
			With("provider", ProviderName).
			Wrap(auth.Classified(auth.ErrVerifySend, err))
	}
	return nil
}

// CheckVerifyResponse reports whether code matches the outstanding code.
// It never consumes the code or marks the link verified.
func (p *Provider) CheckVerifyResponse(ctx context.Context, account Account, code string) (ok bool, err error) {
	ctx, span := p.startSpan(ctx, "CheckVerifyResponse")
	defer func() { p.finish(span, auth.OpCheckVerify, ok, err) }()

	cred, err := p.credentials.GetByEmail(ctx, NormalizeEmail(account.Email))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_VERIFY_CHECK_FAILED").
			With("operation", "get credential").
			With("provider", ProviderName).
			Wrap(err)
	}
	return cred.Challenge().Matches(code, p.codeTTL, p.now()), nil
}

func (p *Provider) hash(ctx context.Context, password, op string) (string, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveHash(ProviderName, op, time.Since(start)) }()
	return auth.HashContext(ctx, p.hasher, password)
}

func (p *Provider) verify(password, hash, op string) (bool, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveHash(ProviderName, op, time.Since(start)) }()
	return p.hasher.Verify(password, hash)
}

// verifyDummy runs one Verify against a throwaway hash from the active strategy.
func (p *Provider) verifyDummy(password string) {
	p.dummyOnce.Do(func() {
		hash, err := p.hasher.Hash(uuid.NewString())
		if err != nil {
			p.logger.Warn("dummy hash unavailable", "error", err)
			return
		}
		p.dummyHash = hash
	})
	if p.dummyHash == "" {
		return
	}
	_, _ = p.verify(password, p.dummyHash, auth.OpLogin) //nolint:errcheck // result is discarded
}

func (p *Provider) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "email.Provider."+name,
		trace.WithAttributes(attribute.String("auth.provider", ProviderName)))
}

func (p *Provider) finish(span trace.Span, op string, ok bool, err error) {
	outcome := auth.OutcomeOf(ok, err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	p.metrics.RecordOperation(ProviderName, op, outcome)
}

// Compile-time interface check.
var _ auth.Provider[Account] = (*Provider)(nil)
