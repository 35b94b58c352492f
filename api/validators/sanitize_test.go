package validators

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeStringKeepsWholeCharacters(t *testing.T) {
	got := SanitizeString("  entregué señal  ", 7)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "entregu", got)

	got = SanitizeString("ññññ", 3)
	require.Equal(t, "ñññ", got)
	require.True(t, utf8.ValidString(got))

	require.Equal(t, "short", SanitizeString(" short ", 10))
	require.Equal(t, "no limit", SanitizeString("no limit", 0))
}
