// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LinkService exposes administrative operations on identity links.
// Verification is never completed implicitly: after a provider reports a
// matching code, the caller marks the link verified here.
type LinkService struct {
	links  LinkRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLinkService creates a LinkService that logs to slog.Default().
func NewLinkService(links LinkRepository) (*LinkService, error) {
	return NewLinkServiceWithLogger(links, slog.Default())
}

// NewLinkServiceWithLogger creates a LinkService with an explicit logger.
func NewLinkServiceWithLogger(links LinkRepository, logger *slog.Logger) (*LinkService, error) {
	if links == nil {
		return nil, oops.Code("LINK_SERVICE_INVALID").Errorf("link repository is required")
	}
	if logger == nil {
		return nil, oops.Code("LINK_SERVICE_INVALID").Errorf("logger is required")
	}
	return &LinkService{links: links, logger: logger, now: time.Now}, nil
}

// Get returns a link by ID.
func (s *LinkService) Get(ctx context.Context, id ulid.ULID) (*IdentityLink, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("LINK_GET_FAILED").
			With("link_id", id.String()).
			Wrap(err)
	}
	return link, nil
}

// ListForUser returns every link owned by userID.
func (s *LinkService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*IdentityLink, error) {
	links, err := s.links.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("LINK_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return links, nil
}

// MarkVerified sets IsVerified and stamps VerifiedAt. An already verified
// link is returned unchanged.
func (s *LinkService) MarkVerified(ctx context.Context, id ulid.ULID) (*IdentityLink, error) {
	return s.setVerified(ctx, id, true)
}

// MarkUnverified clears IsVerified and VerifiedAt.
func (s *LinkService) MarkUnverified(ctx context.Context, id ulid.ULID) (*IdentityLink, error) {
	return s.setVerified(ctx, id, false)
}

func (s *LinkService) setVerified(ctx context.Context, id ulid.ULID, verified bool) (*IdentityLink, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("LINK_VERIFY_FAILED").
			With("operation", "get link").
			With("link_id", id.String()).
			Wrap(err)
	}

	if !link.SetVerified(verified, s.now()) {
		return link, nil
	}
	if err := s.links.UpdateVerified(ctx, link.ID, link.IsVerified, link.VerifiedAt); err != nil {
		return nil, oops.Code("LINK_VERIFY_FAILED").
			With("operation", "update verified").
			With("link_id", id.String()).
			With("verified", verified).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "identity link verification changed",
		"link_id", link.ID.String(),
		"provider", link.ProviderName,
		"user_id", link.UserID.String(),
		"verified", verified)
	return link, nil
}

// Unlink deletes a link. Callers coordinate removal of the provider's
// credential record; providers expose a combined delete for that.
func (s *LinkService) Unlink(ctx context.Context, id ulid.ULID) error {
	if err := s.links.Delete(ctx, id); err != nil {
		return oops.Code("LINK_UNLINK_FAILED").
			With("link_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "identity link removed", "link_id", id.String())
	return nil
}
