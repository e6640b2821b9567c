// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

//go:build integration

package cli_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// yggauth runs the built command against the test database.
func yggauth(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, env.binary, append([]string{"--env-file="}, args...)...)
	cmd.Env = append(cmd.Environ(),
		"DATABASE_URL="+env.connStr,
		"YGGAUTH_LOG_LEVEL=warn",
	)
	cmd.Stdin = strings.NewReader(stdin)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 0
}

var _ = Describe("yggauth command", Ordered, func() {
	var (
		ctx    context.Context
		userID string
	)

	BeforeAll(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		userID = uuid.NewString()
	})

	It("applies the embedded migrations", func() {
		output, err := yggauth(ctx, "", "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		Expect(output).To(ContainSubstring("Applied 000001_create_identity_links"))
		Expect(output).To(ContainSubstring("Applied 000002_create_email_credentials"))

		output, err = yggauth(ctx, "", "migrate", "version")
		Expect(err).NotTo(HaveOccurred(), "version failed: %s", output)
		Expect(output).To(ContainSubstring("Version: 000002_create_email_credentials"))
		Expect(output).To(ContainSubstring("Pending: 0"))
	})

	It("registers an account", func() {
		output, err := yggauth(ctx, "pw123\n", "--json", "register",
			"--email", "ada@example.com", "--user", userID, "--password-stdin")
		Expect(err).NotTo(HaveOccurred(), "register failed: %s", output)

		var count int
		Expect(env.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM ygg_auth_identity_links WHERE user_id = $1 AND NOT is_verified", userID,
		).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("exits with the conflict status on a duplicate", func() {
		output, err := yggauth(ctx, "", "register", "--email", "ada@example.com", "--password", "other")
		Expect(err).To(HaveOccurred())
		Expect(exitStatus(err)).To(Equal(3), output)
	})

	It("logs in and rejects a wrong password", func() {
		output, err := yggauth(ctx, "", "login", "--email", "ada@example.com", "--password", "pw123")
		Expect(err).NotTo(HaveOccurred(), "login failed: %s", output)
		Expect(output).To(ContainSubstring(userID))

		output, err = yggauth(ctx, "", "login", "--email", "ada@example.com", "--password", "nope")
		Expect(err).To(HaveOccurred())
		Expect(exitStatus(err)).To(Equal(2), output)
	})

	It("verifies the address with a printed code", func() {
		output, err := yggauth(ctx, "", "verify", "send", "--email", "ada@example.com", "--code", "424242")
		Expect(err).NotTo(HaveOccurred(), "send failed: %s", output)
		Expect(output).To(ContainSubstring("424242"))

		output, err = yggauth(ctx, "", "--json", "verify", "check",
			"--email", "ada@example.com", "--code", "424242", "--mark")
		Expect(err).NotTo(HaveOccurred(), "check failed: %s", output)

		var verified bool
		Expect(env.pool.QueryRow(ctx,
			"SELECT is_verified FROM ygg_auth_identity_links WHERE user_id = $1", userID,
		).Scan(&verified)).To(Succeed())
		Expect(verified).To(BeTrue())
	})

	It("lists the links of the user", func() {
		output, err := yggauth(ctx, "", "--json", "links", "list", "--user", userID)
		Expect(err).NotTo(HaveOccurred(), "list failed: %s", output)

		start := strings.Index(output, "[")
		Expect(start).To(BeNumerically(">=", 0), output)
		var links []map[string]any
		Expect(json.Unmarshal([]byte(output[start:]), &links)).To(Succeed())
		Expect(links).To(HaveLen(1))
		Expect(links[0]["verified"]).To(BeTrue())
	})

	It("deletes the account", func() {
		output, err := yggauth(ctx, "", "account", "delete", "--email", "ada@example.com", "--yes")
		Expect(err).NotTo(HaveOccurred(), "delete failed: %s", output)

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ygg_auth_email_credentials").Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})

	It("reverts the schema", func() {
		output, err := yggauth(ctx, "", "migrate", "down")
		Expect(err).NotTo(HaveOccurred(), "down failed: %s", output)

		var exists bool
		Expect(env.pool.QueryRow(ctx,
			"SELECT to_regclass('ygg_auth_identity_links') IS NOT NULL",
		).Scan(&exists)).To(Succeed())
		Expect(exists).To(BeFalse())
	})

	Describe("Error handling", func() {
		It("fails with CONFIG_INVALID when DATABASE_URL is missing", func() {
			cmd := exec.CommandContext(ctx, env.binary, "--env-file=", "migrate", "version")
			cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("CONFIG_INVALID"))
		})
	})
})
