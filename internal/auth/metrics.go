// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for provider operation metrics.
const (
	OutcomeSuccess         = "success"
	OutcomeRejected        = "rejected"
	OutcomeConflict        = "conflict"
	OutcomeNotFound        = "not_found"
	OutcomeInvalid         = "invalid"
	OutcomeConnectionError = "connection_error"
	OutcomeDatabaseError   = "database_error"
	OutcomeSendError       = "send_error"
	OutcomeAlgorithmError  = "algorithm_error"
)

// Operation label values.
const (
	OpLogin       = "login"
	OpRegister    = "register"
	OpSendVerify  = "send_verify"
	OpCheckVerify = "check_verify"
)

// Metrics records provider operation counts and password hashing latency.
// A nil *Metrics records nothing.
type Metrics struct {
	Operations   *prometheus.CounterVec
	HashDuration *prometheus.HistogramVec
}

// NewMetrics creates provider metrics and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yggauth_provider_operations_total",
				Help: "Total number of auth provider operations by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yggauth_password_hash_duration_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"provider", "operation"},
		),
	}

	reg.MustRegister(m.Operations)
	reg.MustRegister(m.HashDuration)

	return m
}

// RecordOperation increments the operation counter.
func (m *Metrics) RecordOperation(provider, operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(provider, operation, outcome).Inc()
}

// ObserveHash records the duration of a hash or verify call.
func (m *Metrics) ObserveHash(provider, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// OutcomeOf maps an operation error to its outcome label.
// ok distinguishes a success from a deliberate negative result (nil login, false check).
func OutcomeOf(ok bool, err error) string {
	switch Classify(err) {
	case nil:
		if ok {
			return OutcomeSuccess
		}
		return OutcomeRejected
	case ErrConflictingAccount:
		return OutcomeConflict
	case ErrNotFound:
		return OutcomeNotFound
	case ErrInvalidAccount:
		return OutcomeInvalid
	case ErrConnection:
		return OutcomeConnectionError
	case ErrVerifySend:
		return OutcomeSendError
	case ErrVerifyAlgorithm:
		return OutcomeAlgorithmError
	default:
		return OutcomeDatabaseError
	}
}
