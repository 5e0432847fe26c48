package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateUTF8NeverSplitsRunes(t *testing.T) {
	s := strings.Repeat("界", 10) // 3 bytes each
	got := truncateUTF8(s, 10)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 9, len(got))

	require.Equal(t, "abc", truncateUTF8("abc", 10))
	require.Equal(t, "ab", truncateUTF8("abcd", 2))
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, estimateTokens(""))
	require.Equal(t, 1, estimateTokens("ab"))
	require.Equal(t, 3, estimateTokens("twelve chars"))
}
