// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package mail composes and delivers plain email messages.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	netmail "net/mail"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// Content types understood by Message.
const (
	ContentTypeText = "text/plain; charset=UTF-8"
	ContentTypeHTML = "text/html; charset=UTF-8"
)

var (
	// ErrInvalidAddress is returned when a From or To address does not parse.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrTransport is returned when the message could not be delivered.
	ErrTransport = errors.New("mail transport failure")
)

// Message is a single-recipient email.
type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	ContentType string
}

// Sender delivers messages.
type Sender interface {
	// Send validates both addresses and delivers msg.
	// Returns ErrInvalidAddress or ErrTransport (wrapped) on failure.
	Send(ctx context.Context, msg Message) error
}

// ParseAddress parses a single RFC 5322 address.
func ParseAddress(field, addr string) (*netmail.Address, error) {
	parsed, err := netmail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_ADDRESS").
			With("field", field).
			Wrap(fmt.Errorf("%w: %w", ErrInvalidAddress, err))
	}
	return parsed, nil
}

// compose validates msg and builds the wire message dated now.
func compose(msg Message, now time.Time) (*gomail.Msg, error) {
	from, err := ParseAddress("from", msg.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseAddress("to", msg.To)
	if err != nil {
		return nil, err
	}
	if msg.ContentType == "" {
		msg.ContentType = ContentTypeText
	}
	if strings.ContainsAny(msg.Subject, "\r\n") || strings.ContainsAny(msg.ContentType, "\r\n") {
		return nil, oops.Code("MAIL_INVALID_HEADER").Errorf("header values cannot contain line breaks")
	}
	mediaType, params, err := mime.ParseMediaType(msg.ContentType)
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_HEADER").
			With("content_type", msg.ContentType).
			Wrap(err)
	}
	charset := gomail.CharsetUTF8
	if cs := params["charset"]; cs != "" {
		charset = gomail.Charset(strings.ToUpper(cs))
	}

	m := gomail.NewMsg(gomail.WithCharset(charset), gomail.WithEncoding(gomail.EncodingQP))
	if err := m.From(from.String()); err != nil {
		return nil, oops.Code("MAIL_INVALID_ADDRESS").
			With("field", "from").
			Wrap(fmt.Errorf("%w: %w", ErrInvalidAddress, err))
	}
	if err := m.To(to.String()); err != nil {
		return nil, oops.Code("MAIL_INVALID_ADDRESS").
			With("field", "to").
			Wrap(fmt.Errorf("%w: %w", ErrInvalidAddress, err))
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageIDWithValue(ulid.Make().String() + "@" + domainOf(from.Address))
	m.SetBodyString(gomail.ContentType(mediaType), msg.Body)
	return m, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// WriterSender writes each message to an io.Writer instead of delivering it.
// It is meant for development setups without an SMTP relay.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender creates a WriterSender.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// Send validates msg and writes it.
func (s *WriterSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	m, err := compose(msg, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := m.WriteTo(s.w); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	if _, err := io.WriteString(s.w, "\r\n"); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	return nil
}

// Compile-time interface check.
var _ Sender = (*WriterSender)(nil)
