//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package store_test

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yggdrasil/yggauth/internal/store"
)

func tableExists(ctx context.Context, pool *pgxpool.Pool, name string) bool {
	var exists bool
	err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("yggauth"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, connStr, store.PoolOptions{Retries: 5})
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			Expect(migrator.Close()).To(Succeed())
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2}))
	})

	It("creates both tables on up", func() {
		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())

		Expect(tableExists(ctx, pool, "ygg_auth_identity_links")).To(BeTrue())
		Expect(tableExists(ctx, pool, "ygg_auth_email_credentials")).To(BeTrue())
	})

	It("steps down and back up one version", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists(ctx, pool, "ygg_auth_email_credentials")).To(BeFalse())
		Expect(tableExists(ctx, pool, "ygg_auth_identity_links")).To(BeTrue())

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(tableExists(ctx, pool, "ygg_auth_email_credentials")).To(BeTrue())
	})

	It("is idempotent on repeated up", func() {
		Expect(migrator.Up()).To(Succeed())

		applied, err := migrator.Applied()
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(Equal([]uint{1, 2}))
	})

	It("drops everything on down", func() {
		Expect(migrator.Down()).To(Succeed())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(tableExists(ctx, pool, "ygg_auth_identity_links")).To(BeFalse())
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(1)).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(tableExists(ctx, pool, "ygg_auth_identity_links")).To(BeFalse())
	})
})
