// Package password hashes and verifies optional per-file passwords and
// enforces the upload-time strength policy.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MaxLength bounds plaintext length before hashing. bcrypt ignores
	// input past 72 bytes and some implementations blow up on very long
	// inputs, so oversized plaintexts are rejected outright.
	MaxLength = 128

	bcryptCost = 10
)

// ErrTooLong is returned when the plaintext exceeds MaxLength.
var ErrTooLong = errors.New("password exceeds maximum length")

// Hash produces a salted bcrypt hash of plaintext at a fixed cost.
func Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxLength {
		return "", ErrTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. bcrypt's own comparison
// is used so timing does not depend on where a mismatch occurs; a
// malformed hash verifies false without a distinguishable fast path
// worth caring about, since the caller rate-limits regardless.
func Verify(plaintext, hash string) bool {
	if len(plaintext) > MaxLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
