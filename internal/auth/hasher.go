// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm names accepted by NewHasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultArgon2Time    = 1         // iterations
	DefaultArgon2Memory  = 64 * 1024 // 64 MB
	DefaultArgon2Threads = 4         // parallelism
	argon2SaltLen        = 16        // salt length in bytes
	argon2KeyLen         = 32        // output length in bytes
)

// Parameter bounds accepted when verifying a stored argon2id hash.
const (
	maxArgon2Time    = 64
	maxArgon2Memory  = 4 * 1024 * 1024 // 4 GiB
	maxArgon2KeyLen  = 1024
	minArgon2MemPerP = 8 // argon2 needs 8 KiB per lane
)

// bcrypt rejects inputs longer than this.
const bcryptMaxPasswordLen = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Wrap(Classified(ErrVerifyAlgorithm, errors.New("password cannot be empty")))

// PasswordHasher is a hash strategy: a salted, one-way hash and its verifier.
type PasswordHasher interface {
	// Hash produces a self-describing hash of the password.
	// Two calls with the same password never return the same string.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// HasherConfig selects and tunes a hash strategy.
type HasherConfig struct {
	Algorithm     string
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
}

// NewHasher builds the strategy named by cfg.Algorithm.
// Zero-valued tuning fields fall back to the package defaults.
func NewHasher(cfg HasherConfig) (PasswordHasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmArgon2id:
		return NewArgon2idHasherWithParams(cfg.Argon2Time, cfg.Argon2Memory, cfg.Argon2Threads), nil
	case AlgorithmBcrypt:
		return NewBcryptHasher(cfg.BcryptCost)
	default:
		return nil, oops.Code("AUTH_UNKNOWN_HASH_ALGORITHM").
			With("algorithm", cfg.Algorithm).
			Errorf("unknown hash algorithm %q", cfg.Algorithm)
	}
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	time    uint32
	memory  uint32
	threads uint8
}

// NewArgon2idHasher creates an Argon2idHasher with the default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return NewArgon2idHasherWithParams(0, 0, 0)
}

// NewArgon2idHasherWithParams creates an Argon2idHasher. Zero values use defaults.
func NewArgon2idHasherWithParams(time, memory uint32, threads uint8) *Argon2idHasher {
	h := &Argon2idHasher{time: time, memory: memory, threads: threads}
	if h.time == 0 {
		h.time = DefaultArgon2Time
	}
	if h.memory == 0 {
		h.memory = DefaultArgon2Memory
	}
	if h.threads == 0 {
		h.threads = DefaultArgon2Threads
	}
	return h
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(Classified(ErrVerifyAlgorithm, err))
	}

	hash := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, invalidHash(AlgorithmArgon2id, errors.New("invalid hash format"))
	}

	if parts[1] != "argon2id" {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("unsupported hash algorithm: %s", parts[1]))
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, invalidHash(AlgorithmArgon2id, err)
	}
	if version != argon2.Version {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("unsupported argon2 version %d", version))
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, invalidHash(AlgorithmArgon2id, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, invalidHash(AlgorithmArgon2id, err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, invalidHash(AlgorithmArgon2id, err)
	}

	if threads == 0 || threads > 255 {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("threads value %d out of range", threads))
	}
	if time == 0 || time > maxArgon2Time {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("time value %d out of range", time))
	}
	if memory < minArgon2MemPerP*threads || memory > maxArgon2Memory {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("memory value %d out of range", memory))
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > maxArgon2KeyLen {
		return false, invalidHash(AlgorithmArgon2id, fmt.Errorf("invalid hash key length: %d", keyLen))
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost uses bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_BCRYPT_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > bcryptMaxPasswordLen {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("max", bcryptMaxPasswordLen).
			Wrap(Classified(ErrVerifyAlgorithm, bcrypt.ErrPasswordTooLong))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").
			With("algorithm", AlgorithmBcrypt).
			Wrap(Classified(ErrVerifyAlgorithm, err))
	}
	return string(hash), nil
}

// Verify checks if the password matches the hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, invalidHash(AlgorithmBcrypt, err)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		// Nothing longer than the limit can have been hashed.
		return false, nil
	default:
		return false, invalidHash(AlgorithmBcrypt, err)
	}
}

func invalidHash(algorithm string, err error) error {
	return oops.Code("AUTH_INVALID_HASH").
		With("algorithm", algorithm).
		Wrap(Classified(ErrVerifyAlgorithm, err))
}

type hashResult struct {
	hash string
	err  error
}

// HashContext runs h.Hash as a cancellable unit of work. If ctx is done
// before hashing finishes, the context error is returned and the result
// is discarded when the hash completes.
func HashContext(ctx context.Context, h PasswordHasher, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", oops.Code("AUTH_HASH_CANCELLED").Wrap(Classified(ErrVerifyAlgorithm, err))
	}
	done := make(chan hashResult, 1)
	go func() {
		hash, err := h.Hash(password)
		done <- hashResult{hash: hash, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", oops.Code("AUTH_HASH_CANCELLED").Wrap(Classified(ErrVerifyAlgorithm, ctx.Err()))
	case res := <-done:
		return res.hash, res.err
	}
}

// Compile-time interface checks.
var (
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*BcryptHasher)(nil)
)
