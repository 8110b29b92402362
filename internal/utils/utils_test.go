package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{24}$`)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tok, err := GenerateToken()
		require.NoError(t, err)
		assert.Regexp(t, hexToken, tok)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "a1b2c3***", MaskToken("a1b2c3d4e5f6a7b8c9d0e1f2"))
	assert.Equal(t, "***", MaskToken("T1"))
	assert.Equal(t, "***", MaskToken(""))
}

func TestFormatArrival(t *testing.T) {
	at := time.Date(2025, 6, 1, 18, 30, 5, 0, time.UTC)
	loc := time.FixedZone("CEST", 2*60*60)

	assert.Equal(t, "01/06/2025 20:30:05", FormatArrival(&at, loc))
	assert.Equal(t, "01/06/2025 18:30:05", FormatArrival(&at, nil))
	assert.Empty(t, FormatArrival(nil, loc))
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
}
