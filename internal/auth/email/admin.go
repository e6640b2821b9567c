// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package email

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// Credential returns the stored credential for email.
// Returns auth.ErrNotFound if none exists.
func (p *Provider) Credential(ctx context.Context, email string) (*Credential, error) {
	email = NormalizeEmail(email)
	cred, err := p.credentials.GetByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code("EMAIL_CREDENTIAL_GET_FAILED").
			With("provider", ProviderName).
			Wrap(err)
	}
	return cred, nil
}

// ResolveLink returns the identity link of the credential registered for email.
func (p *Provider) ResolveLink(ctx context.Context, email string) (*auth.IdentityLink, error) {
	cred, err := p.Credential(ctx, email)
	if err != nil {
		return nil, err
	}
	link, err := p.links.GetByKey(ctx, ProviderName, cred.LinkKey())
	if err != nil {
		return nil, oops.Code("EMAIL_RESOLVE_LINK_FAILED").
			With("provider", ProviderName).
			With("provider_key", cred.LinkKey()).
			Wrap(err)
	}
	return link, nil
}

// ChangePassword replaces the password of the credential registered for email.
func (p *Provider) ChangePassword(ctx context.Context, email, newPassword string) error {
	email = NormalizeEmail(email)
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if _, err := p.credentials.GetByEmail(ctx, email); err != nil {
		return oops.Code("EMAIL_CHANGE_PASSWORD_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	hash, err := p.hash(ctx, newPassword, "change_password")
	if err != nil {
		return oops.Code("EMAIL_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(auth.EnsureClass(err, auth.ErrVerifyAlgorithm))
	}
	if err := p.credentials.UpdatePasswordHash(ctx, email, hash); err != nil {
		return oops.Code("EMAIL_CHANGE_PASSWORD_FAILED").
			With("operation", "update password hash").
			Wrap(err)
	}

	p.logger.InfoContext(ctx, "password changed", "provider", ProviderName)
	return nil
}

// ChangeEmail renames a credential. The identity link is keyed by the
// provider key and is left untouched.
func (p *Provider) ChangeEmail(ctx context.Context, oldEmail, newEmail string) error {
	oldEmail, newEmail = NormalizeEmail(oldEmail), NormalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	if oldEmail == newEmail {
		return nil
	}
	if err := p.credentials.UpdateEmail(ctx, oldEmail, newEmail); err != nil {
		return oops.Code("EMAIL_CHANGE_EMAIL_FAILED").
			With("provider", ProviderName).
			Wrap(err)
	}

	p.logger.InfoContext(ctx, "email changed", "provider", ProviderName)
	return nil
}

// RotateKey assigns a new random provider key to the credential and its link.
func (p *Provider) RotateKey(ctx context.Context, email string) (*auth.IdentityLink, error) {
	email = NormalizeEmail(email)
	key, err := uuid.NewRandom()
	if err != nil {
		return nil, oops.Code("EMAIL_ROTATE_KEY_FAILED").
			With("operation", "generate provider key").
			Wrap(auth.Classified(auth.ErrDatabase, err))
	}

	var link *auth.IdentityLink
	err = p.tx.InTransaction(ctx, func(ctx context.Context) error {
		cred, err := p.credentials.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		link, err = p.links.GetByKey(ctx, ProviderName, cred.LinkKey())
		if err != nil {
			return err
		}
		if err := p.credentials.UpdateProviderKey(ctx, email, key); err != nil {
			return err
		}
		if err := p.links.UpdateKey(ctx, link.ID, key.String()); err != nil {
			return err
		}
		link.ProviderKey = key.String()
		return nil
	})
	if err != nil {
		return nil, oops.Code("EMAIL_ROTATE_KEY_FAILED").
			With("provider", ProviderName).
			Wrap(err)
	}

	p.logger.InfoContext(ctx, "provider key rotated",
		"provider", ProviderName,
		"link_id", link.ID.String())
	return link, nil
}

// DeleteAccount removes the credential for email together with its link.
// A credential whose link is already gone is still deleted.
func (p *Provider) DeleteAccount(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	err := p.tx.InTransaction(ctx, func(ctx context.Context) error {
		cred, err := p.credentials.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		link, err := p.links.GetByKey(ctx, ProviderName, cred.LinkKey())
		switch {
		case err == nil:
			if err := p.links.Delete(ctx, link.ID); err != nil {
				return err
			}
		case !errors.Is(err, auth.ErrNotFound):
			return err
		}
		return p.credentials.Delete(ctx, email)
	})
	if err != nil {
		return oops.Code("EMAIL_DELETE_ACCOUNT_FAILED").
			With("provider", ProviderName).
			Wrap(err)
	}

	p.logger.InfoContext(ctx, "account deleted", "provider", ProviderName)
	return nil
}
