// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// IdentityLink binds one provider credential, named by (ProviderName, ProviderKey),
// to a canonical user identity.
type IdentityLink struct {
	ID           ulid.ULID
	ProviderName string
	ProviderKey  string
	UserID       uuid.UUID
	IsVerified   bool
	VerifiedAt   *time.Time
	CreatedAt    time.Time
}

// NewIdentityLink creates an unverified link with a fresh ID.
func NewIdentityLink(providerName, providerKey string, userID uuid.UUID) (*IdentityLink, error) {
	if providerName == "" {
		return nil, oops.Code("LINK_INVALID_PROVIDER").Errorf("provider name cannot be empty")
	}
	if providerKey == "" {
		return nil, oops.Code("LINK_INVALID_KEY").Errorf("provider key cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, oops.Code("LINK_INVALID_USER").Errorf("user id cannot be nil")
	}
	return &IdentityLink{
		ID:           ulid.Make(),
		ProviderName: providerName,
		ProviderKey:  providerKey,
		UserID:       userID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SetVerified applies a verification transition and reports whether the
// link changed. VerifiedAt is set to now only when verified becomes true and
// cleared when it becomes false.
func (l *IdentityLink) SetVerified(verified bool, now time.Time) bool {
	if l.IsVerified == verified {
		return false
	}
	l.IsVerified = verified
	if verified {
		t := now.UTC()
		l.VerifiedAt = &t
		return true
	}
	l.VerifiedAt = nil
	return true
}

// LinkRepository manages identity link persistence.
// Implementations participate in the transaction carried by ctx, if any.
type LinkRepository interface {
	// Create stores a new link. The (ProviderName, ProviderKey) pair must be unique.
	Create(ctx context.Context, link *IdentityLink) error

	// GetByID retrieves a link by ID.
	// Returns ErrNotFound if the link does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*IdentityLink, error)

	// GetByKey retrieves the link for a provider credential.
	// Returns ErrNotFound if no link matches.
	GetByKey(ctx context.Context, providerName, providerKey string) (*IdentityLink, error)

	// ListByUser returns every link owned by userID, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*IdentityLink, error)

	// UpdateVerified persists IsVerified and VerifiedAt.
	UpdateVerified(ctx context.Context, id ulid.ULID, verified bool, verifiedAt *time.Time) error

	// UpdateKey replaces the provider key of a link.
	UpdateKey(ctx context.Context, id ulid.ULID, providerKey string) error

	// Delete removes a link.
	Delete(ctx context.Context, id ulid.ULID) error
}

// Transactor runs a unit of work atomically. Repositories called with the
// context passed to fn participate in the same transaction.
type Transactor interface {
	// InTransaction commits when fn returns nil and rolls back otherwise.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
