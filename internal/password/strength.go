package password

import (
	"strings"
	"unicode"
)

// Strength classifies an accepted password for UX purposes only.
type Strength string

const (
	Weak   Strength = "weak"
	Medium Strength = "medium"
	Strong Strength = "strong"
)

// PolicyError describes why a password fails the hard minimum.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

const minLength = 8

// Common passwords and keyboard walks rejected outright. Compared
// case-insensitively against the full plaintext.
var denylist = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwertyuiop":  {},
	"qwerty123":   {},
	"1q2w3e4r":    {},
	"letmein1":    {},
	"iloveyou":    {},
	"admin123":    {},
	"welcome1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"dragon123":   {},
	"monkey123":   {},
}

// CheckStrength enforces the upload-time policy and classifies the
// password. Enforced only when a share is created, never at verify time.
//
// Hard minimum: length 8..128, at least 3 of the 4 character classes,
// no run of 4+ identical characters, not on the denylist.
func CheckStrength(plaintext string) (Strength, error) {
	if len(plaintext) < minLength {
		return "", &PolicyError{Reason: "password must be at least 8 characters"}
	}
	if len(plaintext) > MaxLength {
		return "", &PolicyError{Reason: "password must be at most 128 characters"}
	}
	if _, denied := denylist[strings.ToLower(plaintext)]; denied {
		return "", &PolicyError{Reason: "password is too common"}
	}
	if hasRun(plaintext, 4) {
		return "", &PolicyError{Reason: "password must not repeat a character 4 or more times in a row"}
	}

	classes := classCount(plaintext)
	if classes < 3 {
		return "", &PolicyError{Reason: "password must mix at least 3 of: uppercase, lowercase, digits, special characters"}
	}

	switch {
	case len(plaintext) >= 16 && classes == 4:
		return Strong, nil
	case len(plaintext) >= 12:
		return Medium, nil
	default:
		return Weak, nil
	}
}

func classCount(s string) int {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	n := 0
	for _, b := range []bool{upper, lower, digit, special} {
		if b {
			n++
		}
	}
	return n
}

func hasRun(s string, n int) bool {
	run := 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
