// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package email

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/mail"
)

// Built-in verification message templates.
const (
	DefaultSubject = `{{.ServiceName}} verification code`
	DefaultBody    = `Hello {{.AccountDescription}},

Your {{.ServiceName}} verification code is: {{.Code}}

If you did not request this code you can ignore this message.
`
)

// TemplateData is the input to a verification message template.
type TemplateData struct {
	Code               string
	ServiceName        string
	AccountDescription string
	Email              string
}

// Content is a rendered verification message.
type Content struct {
	Subject     string
	Body        string
	ContentType string
}

// Template renders verification messages.
type Template interface {
	Render(data TemplateData) (Content, error)
}

// TextTemplate renders subject and body with text/template.
type TextTemplate struct {
	subject     *template.Template
	body        *template.Template
	contentType string
}

// NewTextTemplate parses subject and body templates. An empty content type
// means plain text.
func NewTextTemplate(subject, body, contentType string) (*TextTemplate, error) {
	s, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, oops.Code("TEMPLATE_PARSE_FAILED").With("part", "subject").Wrap(err)
	}
	b, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, oops.Code("TEMPLATE_PARSE_FAILED").With("part", "body").Wrap(err)
	}
	if contentType == "" {
		contentType = mail.ContentTypeText
	}
	return &TextTemplate{subject: s, body: b, contentType: contentType}, nil
}

// DefaultTemplate returns the built-in plain text template.
func DefaultTemplate() *TextTemplate {
	t, err := NewTextTemplate(DefaultSubject, DefaultBody, mail.ContentTypeText)
	if err != nil {
		panic(err) // constant templates
	}
	return t
}

// Render executes both templates. AccountDescription falls back to Email.
func (t *TextTemplate) Render(data TemplateData) (Content, error) {
	if data.AccountDescription == "" {
		data.AccountDescription = data.Email
	}
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Content{}, oops.Code("TEMPLATE_RENDER_FAILED").With("part", "subject").Wrap(err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Content{}, oops.Code("TEMPLATE_RENDER_FAILED").With("part", "body").Wrap(err)
	}
	return Content{
		Subject:     strings.TrimSpace(subject.String()),
		Body:        body.String(),
		ContentType: t.contentType,
	}, nil
}

var _ Template = (*TextTemplate)(nil)
