// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package errutil

import (
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose innermost code is code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code(), "error: %v", err)
}

// AssertErrorContext asserts that the oops context of err maps key to value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertNoSecrets asserts that none of secrets appears in the message,
// the verbose rendering, or the oops context of err. Empty secrets are skipped.
func AssertNoSecrets(t *testing.T, err error, secrets ...string) {
	t.Helper()
	require.Error(t, err)

	rendered := []string{err.Error(), fmt.Sprintf("%+v", err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		for k, v := range oopsErr.Context() {
			rendered = append(rendered, fmt.Sprintf("%s=%v", k, v))
		}
	}
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		for _, s := range rendered {
			assert.NotContains(t, s, secret, "secret leaked into error")
		}
	}
}
