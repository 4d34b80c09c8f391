package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	passwords := []string{
		"Str0ng!Pass",
		"C0rrect-Horse-Battery",
		"aB3$" + strings.Repeat("xY9!", 10),
	}
	for _, pw := range passwords {
		hash, err := Hash(pw)
		require.NoError(t, err)
		require.NotEqual(t, pw, hash)
		assert.True(t, Verify(pw, hash))
	}
}

func TestVerifyFailsOnMutation(t *testing.T) {
	const pw = "Str0ng!Pass"
	hash, err := Hash(pw)
	require.NoError(t, err)

	for i := 0; i < len(pw); i++ {
		mutated := []byte(pw)
		mutated[i] ^= 0x01
		assert.False(t, Verify(string(mutated), hash), "mutation at index %d verified", i)
	}
}

func TestHashRejectsOversizedPlaintext(t *testing.T) {
	_, err := Hash(strings.Repeat("a", MaxLength+1))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestVerifyMalformedHash(t *testing.T) {
	assert.False(t, Verify("anything", "not-a-bcrypt-hash"))
	assert.False(t, Verify("anything", ""))
}

func TestCheckStrengthHardMinimum(t *testing.T) {
	cases := []struct {
		name string
		pw   string
	}{
		{"too short", "aB3!xyz"},
		{"too long", "aB3!" + strings.Repeat("x", 130)},
		{"only two classes", "abcdefgh1234"},
		{"repeated run", "aaaaB3!xcva"},
		{"common password", "Password123"},
		{"keyboard walk", "qwertyuiop"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CheckStrength(tc.pw)
			assert.Error(t, err)
		})
	}
}

func TestCheckStrengthClassification(t *testing.T) {
	s, err := CheckStrength("Str0ng!x")
	require.NoError(t, err)
	assert.Equal(t, Weak, s)

	s, err = CheckStrength("Str0ng!Passww")
	require.NoError(t, err)
	assert.Equal(t, Medium, s)

	s, err = CheckStrength("Str0ng!Pass-Extra#9Z")
	require.NoError(t, err)
	assert.Equal(t, Strong, s)
}
