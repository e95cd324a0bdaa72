package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAcrossCosmeticDifferences(t *testing.T) {
	user, err := NewUserID("alice")
	require.NoError(t, err)

	a := NewFingerprint(user, "Team standup at 9 moved to 9:30.")
	b := NewFingerprint(user, "  team   standup at 9 moved to 9:30.  ")

	assert.Equal(t, a, b)
}

func TestFingerprintDiffersByUser(t *testing.T) {
	alice, _ := NewUserID("alice")
	bob, _ := NewUserID("bob")

	text := "Same text, different owners."
	assert.NotEqual(t, NewFingerprint(alice, text), NewFingerprint(bob, text))
}

func TestFingerprintDiffersByContent(t *testing.T) {
	user, _ := NewUserID("alice")
	a := NewFingerprint(user, "first memory")
	b := NewFingerprint(user, "second memory")
	assert.NotEqual(t, a, b)
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("  Hello\n\tWorld  "))
}
