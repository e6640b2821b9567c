// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package email implements the email/password credential scheme.
//
// Provider satisfies auth.Provider[Account]. Credentials are keyed by email
// address and linked to a canonical user through an auth.IdentityLink whose
// provider key is the credential's random ProviderKey, so renaming an email
// never touches the link table.
package email
