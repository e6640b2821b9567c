// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package postgres

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yggdrasil/yggauth/internal/auth"
)

// Constraint names from the schema migrations.
const (
	constraintEmailPK         = "ygg_auth_email_credentials_pkey"
	constraintCredentialKey   = "ygg_auth_email_credentials_provider_key_key"
	constraintLinkProviderKey = "ygg_auth_identity_links_provider_key_idx"
)

// classify joins a driver error with its taxonomy class. Only a unique
// violation of the email primary key is a conflicting account; every other
// constraint violation is a database error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintEmailPK:
			return auth.Classified(auth.ErrConflictingAccount, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CrashShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return auth.Classified(auth.ErrConnection, err)
		default:
			return auth.Classified(auth.ErrDatabase, err)
		}
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		pgconn.Timeout(err):
		return auth.Classified(auth.ErrConnection, err)
	}
	return auth.Classified(auth.ErrDatabase, err)
}

// isRetryable reports whether a transaction failed on a serialization
// conflict and may succeed when run again.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// ensureClassified leaves already-classified errors alone.
func ensureClassified(err error) error {
	if err == nil || auth.IsClassified(err) {
		return err
	}
	return classify(err)
}
