// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Verification code configuration.
const (
	DefaultCodeLength = 6
	MaxCodeLength     = 32
)

// VerificationState is the state of a credential's verification challenge.
type VerificationState int

// Verification states.
const (
	// NoChallenge means no code is outstanding.
	NoChallenge VerificationState = iota
	// ChallengeOutstanding means a code has been issued and not replaced.
	ChallengeOutstanding
)

// String returns the state name.
func (s VerificationState) String() string {
	switch s {
	case ChallengeOutstanding:
		return "challenge_outstanding"
	default:
		return "no_challenge"
	}
}

// Challenge is the verification-code portion of a credential record.
type Challenge struct {
	Code   *string
	SentAt *time.Time
}

// State returns the challenge's state.
func (c Challenge) State() VerificationState {
	if c.Code == nil {
		return NoChallenge
	}
	return ChallengeOutstanding
}

// IssueChallenge returns the challenge for code issued at now. It replaces
// whatever challenge was outstanding; the previous code stops matching.
func IssueChallenge(code string, now time.Time) Challenge {
	t := now.UTC()
	return Challenge{Code: &code, SentAt: &t}
}

// Matches reports whether submitted equals the outstanding code.
// With ttl > 0, a code older than ttl never matches. Matching does not consume the code.
func (c Challenge) Matches(submitted string, ttl time.Duration, now time.Time) bool {
	if c.Code == nil || submitted == "" {
		return false
	}
	if ttl > 0 && (c.SentAt == nil || now.Sub(*c.SentAt) > ttl) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*c.Code), []byte(submitted)) == 1
}

// GenerateCode returns a uniformly random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 || length > MaxCodeLength {
		return "", oops.Code("VERIFY_INVALID_CODE_LENGTH").
			With("length", length).
			Errorf("code length must be between 1 and %d", MaxCodeLength)
	}
	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", oops.Code("VERIFY_CODE_GENERATE_FAILED").Wrap(err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
