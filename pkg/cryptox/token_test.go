package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"custom size", 24, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			raw, err := base64.RawURLEncoding.DecodeString(token)
			require.NoError(t, err)
			require.Len(t, raw, tt.size)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_TooSmall(t *testing.T) {
	for _, size := range []int{-1, 0, 8, TokenSize128 - 1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	a := FingerprintToken("token-a")
	require.Len(t, a, 43)
	require.Equal(t, a, FingerprintToken("token-a"), "fingerprint must be deterministic")
	require.NotEqual(t, a, FingerprintToken("token-b"))
	require.Equal(t, a[:8], ShortFingerprint("token-a"))
}

func TestEqualStrings(t *testing.T) {
	require.True(t, EqualStrings("123456", "123456"))
	require.False(t, EqualStrings("123456", "123457"))
	require.False(t, EqualStrings("123456", "12345"))
	require.True(t, EqualStrings("", ""))
}
