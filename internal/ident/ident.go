// Package ident generates and validates the opaque identifiers used in
// share links and download tokens.
package ident

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// ShareIDLength is the fixed encoded length of a share ID.
	ShareIDLength = 32
	// DownloadTokenLength is the fixed encoded length of a download token.
	DownloadTokenLength = 22

	shareIDRandomBytes = 24
	tokenRandomBytes   = 16
)

// NewShareID returns an unguessable, URL-safe share identifier.
//
// 24 random bytes are mixed with a nanosecond timestamp and hashed, so
// the output stays uniform even if the random source carries bias, and
// the encoded length is constant. Effective entropy is 192 bits.
func NewShareID() (string, error) {
	buf := make([]byte, shareIDRandomBytes+8)
	if _, err := rand.Read(buf[:shareIDRandomBytes]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	binary.BigEndian.PutUint64(buf[shareIDRandomBytes:], uint64(time.Now().UnixNano()))

	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:ShareIDLength], nil
}

// NewDownloadToken returns a URL-safe single-use token. 128 bits of
// randomness is enough here: the token lives minutes, not days.
func NewDownloadToken() (string, error) {
	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidShareID reports whether s has the exact shape of a share ID.
// Runs before any store access so malformed probes never cost a round trip.
func ValidShareID(s string) bool {
	return len(s) == ShareIDLength && urlSafe(s)
}

// ValidDownloadToken reports whether s has the exact shape of a token.
func ValidDownloadToken(s string) bool {
	return len(s) == DownloadTokenLength && urlSafe(s)
}

func urlSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
