// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yggdrasil/yggauth/internal/auth"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		err  error
		want string
	}{
		{"success", true, nil, auth.OutcomeSuccess},
		{"negative result", false, nil, auth.OutcomeRejected},
		{"conflict", false, auth.ErrConflictingAccount, auth.OutcomeConflict},
		{"not found", false, auth.ErrNotFound, auth.OutcomeNotFound},
		{"invalid", false, auth.ErrInvalidAccount, auth.OutcomeInvalid},
		{"connection", false, auth.ErrConnection, auth.OutcomeConnectionError},
		{"send", false, auth.ErrVerifySend, auth.OutcomeSendError},
		{"algorithm", false, auth.ErrVerifyAlgorithm, auth.OutcomeAlgorithmError},
		{"database", false, auth.ErrDatabase, auth.OutcomeDatabaseError},
		{"unclassified", true, errors.New("boom"), auth.OutcomeDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.OutcomeOf(tt.ok, tt.err))
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := auth.NewMetrics(reg)

	m.RecordOperation("email", auth.OpLogin, auth.OutcomeSuccess)
	m.RecordOperation("email", auth.OpLogin, auth.OutcomeSuccess)
	m.RecordOperation("email", auth.OpLogin, auth.OutcomeRejected)
	m.ObserveHash("email", auth.OpRegister, 20*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Operations.WithLabelValues("email", auth.OpLogin, auth.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Operations.WithLabelValues("email", auth.OpLogin, auth.OutcomeRejected)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.HashDuration))

	t.Run("double registration panics", func(t *testing.T) {
		assert.Panics(t, func() { auth.NewMetrics(reg) })
	})

	t.Run("nil metrics record nothing", func(t *testing.T) {
		var nilMetrics *auth.Metrics
		require.NotPanics(t, func() {
			nilMetrics.RecordOperation("email", auth.OpLogin, auth.OutcomeSuccess)
			nilMetrics.ObserveHash("email", auth.OpLogin, time.Millisecond)
		})
	})
}
