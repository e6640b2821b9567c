// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
	"github.com/yggdrasil/yggauth/pkg/errutil"
)

// registerUnit mirrors the registration unit of work: credential first, then link.
func registerUnit(creds *CredentialRepository, links *LinkRepository) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cred := email.NewCredential("a@x.com", "hash", uuid.New(), time.Now())
		if err := creds.Create(ctx, cred); err != nil {
			return err
		}
		link, err := auth.NewIdentityLink(email.ProviderName, cred.LinkKey(), uuid.New())
		if err != nil {
			return err
		}
		return links.Create(ctx, link)
	}
}

func TestTransactor_InTransaction(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantClass error
		wantCode  string
	}{
		{
			name: "commits credential and link",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO ygg_auth_email_credentials").
					WithArgs(anyArgs(7)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec("INSERT INTO ygg_auth_identity_links").
					WithArgs(anyArgs(7)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "email conflict rolls back before the link insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO ygg_auth_email_credentials").
					WithArgs(anyArgs(7)...).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintEmailPK})
				mock.ExpectRollback()
			},
			wantClass: auth.ErrConflictingAccount,
		},
		{
			name: "link failure rolls back",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO ygg_auth_email_credentials").
					WithArgs(anyArgs(7)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec("INSERT INTO ygg_auth_identity_links").
					WithArgs(anyArgs(7)...).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintLinkProviderKey})
				mock.ExpectRollback()
			},
			wantClass: auth.ErrDatabase,
		},
		{
			name: "begin failure is a connection error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: pgerrcode.CannotConnectNow})
			},
			wantClass: auth.ErrConnection,
			wantCode:  "TX_BEGIN_FAILED",
		},
		{
			name: "commit failure is a database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO ygg_auth_email_credentials").
					WithArgs(anyArgs(7)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec("INSERT INTO ygg_auth_identity_links").
					WithArgs(anyArgs(7)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit().WillReturnError(errors.New("commit rejected"))
			},
			wantClass: auth.ErrDatabase,
			wantCode:  "TX_COMMIT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			tx := NewTransactor(mock).WithRetries(0, time.Millisecond)
			err = tx.InTransaction(context.Background(),
				registerUnit(NewCredentialRepository(mock), NewLinkRepository(mock)))

			if tt.wantClass != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantClass, auth.Classify(err))
				if tt.wantCode != "" {
					errutil.AssertErrorCode(t, err, tt.wantCode)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestTransactor_RetriesSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ygg_auth_identity_links").
		WithArgs(anyArgs(2)...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ygg_auth_identity_links").
		WithArgs(anyArgs(2)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	links := NewLinkRepository(mock)
	attempts := 0
	err = NewTransactor(mock).WithRetries(2, time.Millisecond).InTransaction(context.Background(),
		func(ctx context.Context) error {
			attempts++
			link, err := auth.NewIdentityLink(email.ProviderName, "k", uuid.New())
			require.NoError(t, err)
			return links.UpdateKey(ctx, link.ID, "k2")
		})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_NestedCallJoins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx := NewTransactor(mock)
	err = tx.InTransaction(context.Background(), func(ctx context.Context) error {
		return tx.InTransaction(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_UnclassifiedUnitErrorIsDatabase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error { return boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, auth.ErrDatabase, auth.Classify(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
