// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package validate runs struct-tag validation with readable messages.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is safe for concurrent use once constructed; it caches struct metadata.
var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s using its validate tags.
// Field failures are joined into a single message naming each field and tag.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Var validates a single value against tag, e.g. "required,email".
func Var(field any, tag string) error {
	return v.Var(field, tag)
}
