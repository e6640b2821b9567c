// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by a provider or repository satisfies
// errors.Is for exactly one of the class sentinels below. ErrNotFound is only
// produced by administrative lookups; ErrInvalidAccount only by input validation.
var (
	// ErrConnection is returned when a collaborator cannot be reached.
	ErrConnection = errors.New("connection error")

	// ErrDatabase covers every persistence failure not otherwise classified.
	ErrDatabase = errors.New("database error")

	// ErrConflictingAccount is returned when the natural key is already registered.
	ErrConflictingAccount = errors.New("conflicting account")

	// ErrVerifySend is returned for malformed delivery targets or transport failures.
	ErrVerifySend = errors.New("verify send error")

	// ErrVerifyAlgorithm is returned when a hash cannot be computed or parsed.
	ErrVerifyAlgorithm = errors.New("verify algorithm error")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAccount is returned when caller-supplied account data is malformed.
	ErrInvalidAccount = errors.New("invalid account")
)

var classes = []error{
	ErrConflictingAccount,
	ErrNotFound,
	ErrInvalidAccount,
	ErrVerifyAlgorithm,
	ErrVerifySend,
	ErrConnection,
	ErrDatabase,
}

// Classified joins a taxonomy class with its cause so that both satisfy errors.Is.
// A nil cause yields the class itself.
func Classified(class, cause error) error {
	if cause == nil {
		return class
	}
	if errors.Is(cause, class) {
		return cause
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// Classify returns the taxonomy sentinel err belongs to.
// Unclassified non-nil errors map to ErrDatabase; nil maps to nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range classes {
		if errors.Is(err, class) {
			return class
		}
	}
	return ErrDatabase
}

// EnsureClass returns err unchanged if it already belongs to a class,
// otherwise joins it with fallback.
func EnsureClass(err, fallback error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	return Classified(fallback, err)
}

// IsClassified reports whether err matches any class sentinel.
func IsClassified(err error) bool {
	for _, class := range classes {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is an ErrConflictingAccount.
func IsConflict(err error) bool { return errors.Is(err, ErrConflictingAccount) }

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
