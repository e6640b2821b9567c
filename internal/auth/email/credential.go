// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package email

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// Credential is the stored record behind an email account.
type Credential struct {
	Email        string
	PasswordHash string
	// ProviderKey is the opaque key recorded on the identity link.
	ProviderKey uuid.UUID
	VerifyCode  *string
	CodeSentAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCredential creates a credential with no outstanding challenge.
func NewCredential(email, passwordHash string, providerKey uuid.UUID, now time.Time) *Credential {
	now = now.UTC()
	return &Credential{
		Email:        email,
		PasswordHash: passwordHash,
		ProviderKey:  providerKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Challenge returns the credential's verification state.
func (c *Credential) Challenge() auth.Challenge {
	return auth.Challenge{Code: c.VerifyCode, SentAt: c.CodeSentAt}
}

// LinkKey is the provider key string stored on the identity link.
func (c *Credential) LinkKey() string {
	return c.ProviderKey.String()
}

// CredentialRepository manages credential persistence.
// Implementations participate in the transaction carried by ctx, if any.
type CredentialRepository interface {
	// Create stores a new credential.
	// Returns auth.ErrConflictingAccount if the email is already registered.
	Create(ctx context.Context, cred *Credential) error

	// GetByEmail retrieves a credential by email.
	// Returns auth.ErrNotFound if none exists.
	GetByEmail(ctx context.Context, email string) (*Credential, error)

	// GetByProviderKey retrieves a credential by its provider key.
	// Returns auth.ErrNotFound if none exists.
	GetByProviderKey(ctx context.Context, key uuid.UUID) (*Credential, error)

	// SetVerifyCode overwrites the outstanding challenge.
	SetVerifyCode(ctx context.Context, email string, challenge auth.Challenge) error

	// UpdatePasswordHash replaces the stored hash.
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error

	// UpdateEmail renames a credential.
	// Returns auth.ErrConflictingAccount if newEmail is taken.
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) error

	// UpdateProviderKey replaces the provider key.
	UpdateProviderKey(ctx context.Context, email string, key uuid.UUID) error

	// Delete removes a credential.
	Delete(ctx context.Context, email string) error
}
