// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package memory provides an in-process backend for identity links and
// email credentials. Transactions are serialized and roll back by
// restoring a snapshot.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
)

type txKey struct{}

type linkKey struct {
	provider string
	key      string
}

// Store holds links and credentials in maps guarded by one mutex.
// A transaction holds the mutex until it commits or rolls back.
type Store struct {
	mu          sync.Mutex
	links       map[ulid.ULID]*auth.IdentityLink
	credentials map[string]*email.Credential
	now         func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		links:       make(map[ulid.ULID]*auth.IdentityLink),
		credentials: make(map[string]*email.Credential),
		now:         time.Now,
	}
}

// InTransaction runs fn with exclusive access to the store. Changes made by
// fn are discarded if it returns an error or panics. Nested calls join the
// outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock acquires the mutex unless ctx already carries this store's transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	links       map[ulid.ULID]*auth.IdentityLink
	credentials map[string]*email.Credential
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		links:       make(map[ulid.ULID]*auth.IdentityLink, len(s.links)),
		credentials: make(map[string]*email.Credential, len(s.credentials)),
	}
	for id, l := range s.links {
		snap.links[id] = copyLink(l)
	}
	for k, c := range s.credentials {
		snap.credentials[k] = copyCredential(c)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.links = snap.links
	s.credentials = snap.credentials
}

func copyLink(l *auth.IdentityLink) *auth.IdentityLink {
	c := *l
	if l.VerifiedAt != nil {
		t := *l.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

func copyCredential(cred *email.Credential) *email.Credential {
	c := *cred
	if cred.VerifyCode != nil {
		code := *cred.VerifyCode
		c.VerifyCode = &code
	}
	if cred.CodeSentAt != nil {
		t := *cred.CodeSentAt
		c.CodeSentAt = &t
	}
	return &c
}

func linkNotFound(field string, value any) error {
	return oops.Code("LINK_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
}

func credentialNotFound(field string, value any) error {
	return oops.Code("CREDENTIAL_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
}

var errDuplicateKey = errors.New("duplicate provider key")

// --- auth.LinkRepository ---

// LinkRepository returns the store's view as an auth.LinkRepository.
func (s *Store) LinkRepository() auth.LinkRepository { return (*linkRepo)(s) }

type linkRepo Store

func (r *linkRepo) store() *Store { return (*Store)(r) }

func (r *linkRepo) findByKey(provider, key string) *auth.IdentityLink {
	for _, l := range r.links {
		if l.ProviderName == provider && l.ProviderKey == key {
			return l
		}
	}
	return nil
}

func (r *linkRepo) Create(ctx context.Context, link *auth.IdentityLink) error {
	defer r.store().lock(ctx)()

	if _, ok := r.links[link.ID]; ok || r.findByKey(link.ProviderName, link.ProviderKey) != nil {
		return oops.Code("LINK_CREATE_FAILED").
			With("provider", link.ProviderName).
			Wrap(auth.Classified(auth.ErrDatabase, errDuplicateKey))
	}
	r.links[link.ID] = copyLink(link)
	return nil
}

func (r *linkRepo) GetByID(ctx context.Context, id ulid.ULID) (*auth.IdentityLink, error) {
	defer r.store().lock(ctx)()

	l, ok := r.links[id]
	if !ok {
		return nil, linkNotFound("id", id.String())
	}
	return copyLink(l), nil
}

func (r *linkRepo) GetByKey(ctx context.Context, providerName, providerKey string) (*auth.IdentityLink, error) {
	defer r.store().lock(ctx)()

	l := r.findByKey(providerName, providerKey)
	if l == nil {
		return nil, linkNotFound("provider_key", providerKey)
	}
	return copyLink(l), nil
}

func (r *linkRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*auth.IdentityLink, error) {
	defer r.store().lock(ctx)()

	links := make([]*auth.IdentityLink, 0)
	for _, l := range r.links {
		if l.UserID == userID {
			links = append(links, copyLink(l))
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].ID.Compare(links[j].ID) < 0
	})
	return links, nil
}

func (r *linkRepo) UpdateVerified(ctx context.Context, id ulid.ULID, verified bool, verifiedAt *time.Time) error {
	defer r.store().lock(ctx)()

	l, ok := r.links[id]
	if !ok {
		return linkNotFound("id", id.String())
	}
	l.IsVerified = verified
	l.VerifiedAt = nil
	if verifiedAt != nil {
		t := *verifiedAt
		l.VerifiedAt = &t
	}
	return nil
}

func (r *linkRepo) UpdateKey(ctx context.Context, id ulid.ULID, providerKey string) error {
	defer r.store().lock(ctx)()

	l, ok := r.links[id]
	if !ok {
		return linkNotFound("id", id.String())
	}
	if other := r.findByKey(l.ProviderName, providerKey); other != nil && other.ID != id {
		return oops.Code("LINK_UPDATE_FAILED").
			With("id", id.String()).
			Wrap(auth.Classified(auth.ErrDatabase, errDuplicateKey))
	}
	l.ProviderKey = providerKey
	return nil
}

func (r *linkRepo) Delete(ctx context.Context, id ulid.ULID) error {
	defer r.store().lock(ctx)()

	if _, ok := r.links[id]; !ok {
		return linkNotFound("id", id.String())
	}
	delete(r.links, id)
	return nil
}

// --- email.CredentialRepository ---

// CredentialRepository returns the store's view as an email.CredentialRepository.
func (s *Store) CredentialRepository() email.CredentialRepository { return (*credentialRepo)(s) }

type credentialRepo Store

func (r *credentialRepo) store() *Store { return (*Store)(r) }

func (r *credentialRepo) keyTaken(key uuid.UUID, except string) bool {
	for e, c := range r.credentials {
		if e != except && c.ProviderKey == key {
			return true
		}
	}
	return false
}

func (r *credentialRepo) Create(ctx context.Context, cred *email.Credential) error {
	defer r.store().lock(ctx)()

	if _, ok := r.credentials[cred.Email]; ok {
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("email", cred.Email).
			Wrap(auth.ErrConflictingAccount)
	}
	if r.keyTaken(cred.ProviderKey, "") {
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("email", cred.Email).
			Wrap(auth.Classified(auth.ErrDatabase, errDuplicateKey))
	}
	r.credentials[cred.Email] = copyCredential(cred)
	return nil
}

func (r *credentialRepo) GetByEmail(ctx context.Context, addr string) (*email.Credential, error) {
	defer r.store().lock(ctx)()

	c, ok := r.credentials[addr]
	if !ok {
		return nil, credentialNotFound("email", addr)
	}
	return copyCredential(c), nil
}

func (r *credentialRepo) GetByProviderKey(ctx context.Context, key uuid.UUID) (*email.Credential, error) {
	defer r.store().lock(ctx)()

	for _, c := range r.credentials {
		if c.ProviderKey == key {
			return copyCredential(c), nil
		}
	}
	return nil, credentialNotFound("provider_key", key.String())
}

// mutate applies fn to the credential for addr and bumps UpdatedAt.
func (r *credentialRepo) mutate(ctx context.Context, addr string, fn func(c *email.Credential) error) error {
	defer r.store().lock(ctx)()

	c, ok := r.credentials[addr]
	if !ok {
		return credentialNotFound("email", addr)
	}
	if err := fn(c); err != nil {
		return err
	}
	c.UpdatedAt = r.now().UTC()
	return nil
}

func (r *credentialRepo) SetVerifyCode(ctx context.Context, addr string, challenge auth.Challenge) error {
	return r.mutate(ctx, addr, func(c *email.Credential) error {
		c.VerifyCode, c.CodeSentAt = nil, nil
		if challenge.Code != nil {
			code := *challenge.Code
			c.VerifyCode = &code
		}
		if challenge.SentAt != nil {
			t := *challenge.SentAt
			c.CodeSentAt = &t
		}
		return nil
	})
}

func (r *credentialRepo) UpdatePasswordHash(ctx context.Context, addr, passwordHash string) error {
	return r.mutate(ctx, addr, func(c *email.Credential) error {
		c.PasswordHash = passwordHash
		return nil
	})
}

func (r *credentialRepo) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	defer r.store().lock(ctx)()

	c, ok := r.credentials[oldEmail]
	if !ok {
		return credentialNotFound("email", oldEmail)
	}
	if _, taken := r.credentials[newEmail]; taken {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("email", newEmail).
			Wrap(auth.ErrConflictingAccount)
	}
	delete(r.credentials, oldEmail)
	c.Email = newEmail
	c.UpdatedAt = r.now().UTC()
	r.credentials[newEmail] = c
	return nil
}

func (r *credentialRepo) UpdateProviderKey(ctx context.Context, addr string, key uuid.UUID) error {
	defer r.store().lock(ctx)()

	c, ok := r.credentials[addr]
	if !ok {
		return credentialNotFound("email", addr)
	}
	if r.keyTaken(key, addr) {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("email", addr).
			Wrap(auth.Classified(auth.ErrDatabase, errDuplicateKey))
	}
	c.ProviderKey = key
	c.UpdatedAt = r.now().UTC()
	return nil
}

func (r *credentialRepo) Delete(ctx context.Context, addr string) error {
	defer r.store().lock(ctx)()

	if _, ok := r.credentials[addr]; !ok {
		return credentialNotFound("email", addr)
	}
	delete(r.credentials, addr)
	return nil
}

// Compile-time interface checks.
var (
	_ auth.Transactor            = (*Store)(nil)
	_ auth.LinkRepository        = (*linkRepo)(nil)
	_ email.CredentialRepository = (*credentialRepo)(nil)
)
