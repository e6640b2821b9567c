// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

//go:build integration

package auth_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/auth/email"
)

var _ = Describe("Email provider on PostgreSQL", func() {
	var (
		ctx    context.Context
		f      *fixture
		userID uuid.UUID
		ada    email.Account
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		f = newFixture()
		userID = uuid.New()
		ada = email.Account{Email: "ada@example.com", Password: "pw123"}
	})

	Describe("Registration", func() {
		It("creates one credential and one unverified link sharing a key", func() {
			link, err := f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.ProviderName).To(Equal(email.ProviderName))
			Expect(link.UserID).To(Equal(userID))
			Expect(link.IsVerified).To(BeFalse())

			cred, err := f.credentials.GetByEmail(ctx, ada.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(cred.LinkKey()).To(Equal(link.ProviderKey))
			Expect(cred.PasswordHash).To(HavePrefix("$argon2id$"))
			Expect(cred.VerifyCode).To(BeNil())

			stored, err := f.links.GetByKey(ctx, email.ProviderName, cred.LinkKey())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(link.ID))

			var links, creds int
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ygg_auth_identity_links").Scan(&links)).To(Succeed())
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ygg_auth_email_credentials").Scan(&creds)).To(Succeed())
			Expect(links).To(Equal(1))
			Expect(creds).To(Equal(1))
		})

		It("rejects a second registration for the same email", func() {
			_, err := f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.provider.TryRegister(ctx, email.Account{Email: ada.Email, Password: "other"}, uuid.New())
			Expect(errors.Is(err, auth.ErrConflictingAccount)).To(BeTrue(), "got %v", err)
		})

		It("lets exactly one of several concurrent registrations win", func() {
			const racers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				wins      int
				conflicts int
				others    []error
			)
			for range racers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := f.provider.TryRegister(ctx, ada, uuid.New())
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, auth.ErrConflictingAccount):
						conflicts++
					default:
						others = append(others, err)
					}
				}()
			}
			wg.Wait()

			Expect(others).To(BeEmpty())
			Expect(wins).To(Equal(1))
			Expect(conflicts).To(Equal(racers - 1))

			var links int
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ygg_auth_identity_links").Scan(&links)).To(Succeed())
			Expect(links).To(Equal(1))
		})

		It("keeps the email case as registered", func() {
			_, err := f.provider.TryRegister(ctx, email.Account{Email: "Ada@Example.com", Password: "pw123"}, userID)
			Expect(err).NotTo(HaveOccurred())

			link, err := f.provider.TryLogin(ctx, email.Account{Email: "ada@example.com", Password: "pw123"})
			Expect(err).NotTo(HaveOccurred())
			Expect(link).To(BeNil())
		})
	})

	Describe("Login", func() {
		var registered *auth.IdentityLink

		BeforeEach(func() {
			var err error
			registered, err = f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the link for the right password", func() {
			link, err := f.provider.TryLogin(ctx, ada)
			Expect(err).NotTo(HaveOccurred())
			Expect(link).NotTo(BeNil())
			Expect(link.ID).To(Equal(registered.ID))
		})

		It("returns nothing for a wrong password or unknown email", func() {
			link, err := f.provider.TryLogin(ctx, email.Account{Email: ada.Email, Password: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(link).To(BeNil())

			link, err = f.provider.TryLogin(ctx, email.Account{Email: "nobody@example.com", Password: "pw123"})
			Expect(err).NotTo(HaveOccurred())
			Expect(link).To(BeNil())
		})
	})

	Describe("Verification", func() {
		var registered *auth.IdentityLink

		BeforeEach(func() {
			var err error
			registered, err = f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("stores the code, mails it and leaves the link unverified", func() {
			Expect(f.provider.SendVerify(ctx, ada, auth.VerifyInfo{ServiceName: "Yggdrasil"})).To(Succeed())

			msg := f.outbox.last()
			Expect(msg.To).To(Equal(ada.Email))
			Expect(msg.Subject).To(Equal("Yggdrasil verification code"))

			cred, err := f.credentials.GetByEmail(ctx, ada.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(cred.VerifyCode).NotTo(BeNil())
			Expect(*cred.VerifyCode).To(HaveLen(auth.DefaultCodeLength))
			Expect(msg.Body).To(ContainSubstring(*cred.VerifyCode))
			Expect(cred.CodeSentAt).NotTo(BeNil())
			Expect(*cred.CodeSentAt).To(BeTemporally("~", time.Now(), time.Minute))

			ok, err := f.provider.CheckVerifyResponse(ctx, ada, *cred.VerifyCode)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			link, err := f.linkService.Get(ctx, registered.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.IsVerified).To(BeFalse())

			link, err = f.linkService.MarkVerified(ctx, registered.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.IsVerified).To(BeTrue())

			stored, err := f.links.GetByID(ctx, registered.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsVerified).To(BeTrue())
			Expect(stored.VerifiedAt).NotTo(BeNil())
		})

		It("invalidates the previous code when a new one is issued", func() {
			Expect(f.provider.SendVerify(ctx, ada, auth.VerifyInfo{Code: "111111"})).To(Succeed())
			Expect(f.provider.SendVerify(ctx, ada, auth.VerifyInfo{Code: "222222"})).To(Succeed())

			ok, err := f.provider.CheckVerifyResponse(ctx, ada, "111111")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = f.provider.CheckVerifyResponse(ctx, ada, "222222")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("rejects an unknown account without sending mail", func() {
			Expect(f.provider.SendVerify(ctx, email.Account{Email: "nobody@example.com"}, auth.VerifyInfo{})).To(Succeed())
			Expect(f.outbox.sent).To(BeEmpty())

			ok, err := f.provider.CheckVerifyResponse(ctx, email.Account{Email: "nobody@example.com"}, "123456")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Administration", func() {
		var registered *auth.IdentityLink

		BeforeEach(func() {
			var err error
			registered, err = f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rotates the key on both records together", func() {
			link, err := f.provider.RotateKey(ctx, ada.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.ProviderKey).NotTo(Equal(registered.ProviderKey))

			cred, err := f.credentials.GetByEmail(ctx, ada.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(cred.LinkKey()).To(Equal(link.ProviderKey))

			_, err = f.links.GetByKey(ctx, email.ProviderName, registered.ProviderKey)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("renames without touching the link", func() {
			Expect(f.provider.ChangeEmail(ctx, ada.Email, "lovelace@example.com")).To(Succeed())

			link, err := f.provider.TryLogin(ctx, email.Account{Email: "lovelace@example.com", Password: "pw123"})
			Expect(err).NotTo(HaveOccurred())
			Expect(link.ID).To(Equal(registered.ID))
		})

		It("refuses to rename onto a taken email", func() {
			_, err := f.provider.TryRegister(ctx, email.Account{Email: "grace@example.com", Password: "pw"}, uuid.New())
			Expect(err).NotTo(HaveOccurred())

			err = f.provider.ChangeEmail(ctx, ada.Email, "grace@example.com")
			Expect(errors.Is(err, auth.ErrConflictingAccount)).To(BeTrue(), "got %v", err)
		})

		It("deletes the credential and its link in one transaction", func() {
			Expect(f.provider.DeleteAccount(ctx, ada.Email)).To(Succeed())

			_, err := f.credentials.GetByEmail(ctx, ada.Email)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			_, err = f.links.GetByID(ctx, registered.ID)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Transactor", func() {
		It("rolls back every write when the unit of work fails", func() {
			boom := errors.New("boom")
			err := f.tx.InTransaction(ctx, func(ctx context.Context) error {
				cred := email.NewCredential("rollback@example.com", "$argon2id$x", uuid.New(), time.Now())
				if err := f.credentials.Create(ctx, cred); err != nil {
					return err
				}
				link, err := auth.NewIdentityLink(email.ProviderName, cred.LinkKey(), userID)
				if err != nil {
					return err
				}
				if err := f.links.Create(ctx, link); err != nil {
					return err
				}
				return boom
			})
			Expect(errors.Is(err, boom)).To(BeTrue())

			_, err = f.credentials.GetByEmail(ctx, "rollback@example.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			links, err := f.links.ListByUser(ctx, userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(BeEmpty())
		})

		It("keeps the first registration when a second collides on the link key", func() {
			link, err := f.provider.TryRegister(ctx, ada, userID)
			Expect(err).NotTo(HaveOccurred())

			err = f.tx.InTransaction(ctx, func(ctx context.Context) error {
				cred := email.NewCredential("clash@example.com", "$argon2id$x", uuid.New(), time.Now())
				if err := f.credentials.Create(ctx, cred); err != nil {
					return err
				}
				dup, err := auth.NewIdentityLink(email.ProviderName, link.ProviderKey, uuid.New())
				if err != nil {
					return err
				}
				return f.links.Create(ctx, dup)
			})
			Expect(errors.Is(err, auth.ErrDatabase)).To(BeTrue(), "got %v", err)

			_, err = f.credentials.GetByEmail(ctx, "clash@example.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})
