// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package auth provides the provider-agnostic identity core.
//
// # Domain Types
//
//   - IdentityLink - binds (provider name, provider key) to a canonical user ID.
//     Create with NewIdentityLink.
//   - Challenge - the verification-code state of a credential record.
//
// # Contracts
//
//   - Provider - the login/register/send-verify/check-verify capability set,
//     generic over the account shape. Concrete schemes live in sub-packages
//     (see package email).
//   - PasswordHasher - a hash strategy. Argon2idHasher and BcryptHasher are
//     provided; NewHasher picks one from configuration.
//   - LinkRepository, Transactor - persistence collaborators, implemented by
//     packages postgres and memory.
//
// # Errors
//
// Every error carries an oops code and matches exactly one class sentinel
// (ErrConnection, ErrDatabase, ErrConflictingAccount, ErrVerifySend,
// ErrVerifyAlgorithm, ErrNotFound, ErrInvalidAccount). Use Classify to
// recover the class.
package auth
