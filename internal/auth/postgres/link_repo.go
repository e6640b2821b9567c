// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/auth"
)

const linkColumns = `id, provider_name, provider_key, user_id, is_verified, verified_at, created_at`

// LinkRepository implements auth.LinkRepository using PostgreSQL.
type LinkRepository struct {
	pool poolIface
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(pool poolIface) *LinkRepository {
	return &LinkRepository{pool: pool}
}

// Create stores a new link.
func (r *LinkRepository) Create(ctx context.Context, link *auth.IdentityLink) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO ygg_auth_identity_links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		link.ID.String(),
		link.ProviderName,
		link.ProviderKey,
		link.UserID.String(),
		link.IsVerified,
		link.VerifiedAt,
		link.CreatedAt,
	)
	if err != nil {
		return oops.Code("LINK_CREATE_FAILED").
			With("operation", "insert link").
			With("provider", link.ProviderName).
			Wrap(classify(err))
	}
	return nil
}

// GetByID retrieves a link by ID.
func (r *LinkRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.IdentityLink, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM ygg_auth_identity_links
		WHERE id = $1
	`, id.String())

	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("LINK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("LINK_GET_FAILED").
			With("operation", "get link by id").
			With("id", id.String()).
			Wrap(classify(err))
	}
	return link, nil
}

// GetByKey retrieves the link for a provider credential.
func (r *LinkRepository) GetByKey(ctx context.Context, providerName, providerKey string) (*auth.IdentityLink, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM ygg_auth_identity_links
		WHERE provider_name = $1 AND provider_key = $2
	`, providerName, providerKey)

	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("LINK_NOT_FOUND").
			With("provider", providerName).
			With("provider_key", providerKey).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("LINK_GET_FAILED").
			With("operation", "get link by key").
			With("provider", providerName).
			Wrap(classify(err))
	}
	return link, nil
}

// ListByUser returns every link owned by userID, oldest first.
func (r *LinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*auth.IdentityLink, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+linkColumns+`
		FROM ygg_auth_identity_links
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID.String())
	if err != nil {
		return nil, oops.Code("LINK_LIST_FAILED").
			With("operation", "query links").
			With("user_id", userID.String()).
			Wrap(classify(err))
	}
	defer rows.Close()

	links := make([]*auth.IdentityLink, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, oops.Code("LINK_LIST_FAILED").
				With("operation", "scan link").
				With("user_id", userID.String()).
				Wrap(classify(err))
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("LINK_LIST_FAILED").
			With("operation", "iterate links").
			With("user_id", userID.String()).
			Wrap(classify(err))
	}
	return links, nil
}

// UpdateVerified persists the verification state of a link.
func (r *LinkRepository) UpdateVerified(ctx context.Context, id ulid.ULID, verified bool, verifiedAt *time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE ygg_auth_identity_links
		SET is_verified = $2, verified_at = $3
		WHERE id = $1
	`, id.String(), verified, verifiedAt)
	if err != nil {
		return oops.Code("LINK_UPDATE_FAILED").
			With("operation", "update verified").
			With("id", id.String()).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("LINK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateKey replaces the provider key of a link.
func (r *LinkRepository) UpdateKey(ctx context.Context, id ulid.ULID, providerKey string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE ygg_auth_identity_links
		SET provider_key = $2
		WHERE id = $1
	`, id.String(), providerKey)
	if err != nil {
		return oops.Code("LINK_UPDATE_FAILED").
			With("operation", "update key").
			With("id", id.String()).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("LINK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a link.
func (r *LinkRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM ygg_auth_identity_links WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("LINK_DELETE_FAILED").
			With("operation", "delete link").
			With("id", id.String()).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("LINK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanLink(row pgx.Row) (*auth.IdentityLink, error) {
	var (
		link   auth.IdentityLink
		idStr  string
		userID string
	)
	if err := row.Scan(
		&idStr,
		&link.ProviderName,
		&link.ProviderKey,
		&userID,
		&link.IsVerified,
		&link.VerifiedAt,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if link.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.With("operation", "parse link id").With("id", idStr).Wrap(err)
	}
	if link.UserID, err = uuid.Parse(userID); err != nil {
		return nil, oops.With("operation", "parse user id").With("user_id", userID).Wrap(err)
	}
	return &link, nil
}

var _ auth.LinkRepository = (*LinkRepository)(nil)
