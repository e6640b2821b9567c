// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"context"

	"github.com/google/uuid"
)

// VerifyInfo carries the data a provider needs to issue a verification challenge.
type VerifyInfo struct {
	// Code is the code to issue. When empty the provider generates one.
	Code string

	// ServiceName is shown to the recipient, e.g. in the message subject.
	ServiceName string

	// AccountDescription describes the account to the recipient.
	AccountDescription string
}

// Provider is the contract every credential scheme implements. A is the
// shape of the account a caller presents (email+password, a phone number,
// an OAuth assertion, ...). Schemes share no state with each other.
type Provider[A any] interface {
	// Name is the provider name recorded in IdentityLink.ProviderName.
	Name() string

	// TryLogin returns the link for a fully matching, existing credential.
	// Unknown accounts and wrong secrets both yield (nil, nil).
	TryLogin(ctx context.Context, account A) (*IdentityLink, error)

	// TryRegister creates the credential and its unverified link atomically.
	// Returns ErrConflictingAccount if the account's natural key is taken.
	TryRegister(ctx context.Context, account A, userID uuid.UUID) (*IdentityLink, error)

	// SendVerify records a new verification code and dispatches it.
	// Returns ErrVerifySend on a malformed target or transport failure.
	SendVerify(ctx context.Context, account A, info VerifyInfo) error

	// CheckVerifyResponse reports whether code matches the active code.
	// It does not mark the link verified; callers do that explicitly
	// through LinkService.MarkVerified after a true result.
	CheckVerifyResponse(ctx context.Context, account A, code string) (bool, error)
}
