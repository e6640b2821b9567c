// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package mail

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// DialTimeout bounds connection setup and each SMTP command.
	DialTimeout time.Duration
}

// SMTPSender delivers messages through an SMTP relay, upgrading to TLS
// when the server offers STARTTLS. A configured username makes SMTP AUTH
// mandatory: a relay that does not offer it fails the send.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Send validates msg and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := compose(msg, time.Now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	client, err := s.client()
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("smtp_addr", addr).
			Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("smtp_addr", addr).
			Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	return nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.DialTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return gomail.NewClient(s.cfg.Host, opts...)
}

// Compile-time interface check.
var _ Sender = (*SMTPSender)(nil)
