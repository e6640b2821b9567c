// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
)

const credentialColumns = `email, password_hash, provider_key, verify_code, code_sent_at, created_at, updated_at`

// CredentialRepository implements email.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool, now: time.Now}
}

// Create stores a new credential. A duplicate email is a conflicting account.
func (r *CredentialRepository) Create(ctx context.Context, cred *email.Credential) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO ygg_auth_email_credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		cred.Email,
		cred.PasswordHash,
		cred.ProviderKey.String(),
		cred.VerifyCode,
		cred.CodeSentAt,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("email", cred.Email).
			Wrap(classify(err))
	}
	return nil
}

// GetByEmail retrieves a credential by email.
func (r *CredentialRepository) GetByEmail(ctx context.Context, addr string) (*email.Credential, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM ygg_auth_email_credentials
		WHERE email = $1
	`, addr)

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("email", addr).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by email").
			With("email", addr).
			Wrap(classify(err))
	}
	return cred, nil
}

// GetByProviderKey retrieves a credential by its provider key.
func (r *CredentialRepository) GetByProviderKey(ctx context.Context, key uuid.UUID) (*email.Credential, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM ygg_auth_email_credentials
		WHERE provider_key = $1
	`, key.String())

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("provider_key", key.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by provider key").
			With("provider_key", key.String()).
			Wrap(classify(err))
	}
	return cred, nil
}

// SetVerifyCode overwrites the outstanding challenge.
func (r *CredentialRepository) SetVerifyCode(ctx context.Context, addr string, challenge auth.Challenge) error {
	return r.update(ctx, "set verify code", addr, `
		UPDATE ygg_auth_email_credentials
		SET verify_code = $2, code_sent_at = $3, updated_at = $4
		WHERE email = $1
	`, addr, challenge.Code, challenge.SentAt, r.now().UTC())
}

// UpdatePasswordHash replaces the stored hash.
func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, addr, passwordHash string) error {
	return r.update(ctx, "update password hash", addr, `
		UPDATE ygg_auth_email_credentials
		SET password_hash = $2, updated_at = $3
		WHERE email = $1
	`, addr, passwordHash, r.now().UTC())
}

// UpdateEmail renames a credential. A taken address is a conflicting account.
func (r *CredentialRepository) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	return r.update(ctx, "update email", oldEmail, `
		UPDATE ygg_auth_email_credentials
		SET email = $2, updated_at = $3
		WHERE email = $1
	`, oldEmail, newEmail, r.now().UTC())
}

// UpdateProviderKey replaces the provider key.
func (r *CredentialRepository) UpdateProviderKey(ctx context.Context, addr string, key uuid.UUID) error {
	return r.update(ctx, "update provider key", addr, `
		UPDATE ygg_auth_email_credentials
		SET provider_key = $2, updated_at = $3
		WHERE email = $1
	`, addr, key.String(), r.now().UTC())
}

// Delete removes a credential.
func (r *CredentialRepository) Delete(ctx context.Context, addr string) error {
	return r.update(ctx, "delete credential", addr,
		`DELETE FROM ygg_auth_email_credentials WHERE email = $1`, addr)
}

// update runs a single-row statement keyed by email.
func (r *CredentialRepository) update(ctx context.Context, operation, addr, sql string, args ...any) error {
	result, err := conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", operation).
			With("email", addr).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("email", addr).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanCredential(row pgx.Row) (*email.Credential, error) {
	var (
		cred email.Credential
		key  string
	)
	if err := row.Scan(
		&cred.Email,
		&cred.PasswordHash,
		&key,
		&cred.VerifyCode,
		&cred.CodeSentAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(key)
	if err != nil {
		return nil, oops.With("operation", "parse provider key").With("provider_key", key).Wrap(err)
	}
	cred.ProviderKey = parsed
	return &cred, nil
}

var _ email.CredentialRepository = (*CredentialRepository)(nil)
