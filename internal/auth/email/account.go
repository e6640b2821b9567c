// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package email

import (
	"strings"

	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/pkg/validate"
)

// MaxPasswordLength bounds the accepted password size in bytes.
const MaxPasswordLength = 1024

// Account is the credential a caller presents to the email provider.
type Account struct {
	Email    string `validate:"required,email,max=320"`
	Password string `validate:"required,max=1024"`
}

// Normalize trims surrounding whitespace from the email. Case is preserved.
func (a Account) Normalize() Account {
	a.Email = NormalizeEmail(a.Email)
	return a
}

// Validate checks both fields.
func (a Account) Validate() error {
	if err := validate.Struct(a); err != nil {
		return oops.Code("AUTH_INVALID_ACCOUNT").
			With("provider", ProviderName).
			Wrap(auth.Classified(auth.ErrInvalidAccount, err))
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// validateEmail checks a lone address, for operations that take no password.
func validateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=320"); err != nil {
		return oops.Code("AUTH_INVALID_ACCOUNT").
			With("provider", ProviderName).
			With("field", "email").
			Wrap(auth.Classified(auth.ErrInvalidAccount, err))
	}
	return nil
}

func validatePassword(password string) error {
	if err := validate.Var(password, "required,max=1024"); err != nil {
		return oops.Code("AUTH_INVALID_ACCOUNT").
			With("provider", ProviderName).
			With("field", "password").
			Wrap(auth.Classified(auth.ErrInvalidAccount, err))
	}
	return nil
}
