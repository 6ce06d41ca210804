package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	generated, err := Generate("book")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generated, "book-"))
	assert.Len(t, generated, len("book-")+21)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		generated, err := Generate("author")
		require.NoError(t, err)
		require.False(t, seen[generated], "duplicate id %s", generated)
		seen[generated] = true
	}
}

func TestMustGenerate(t *testing.T) {
	assert.True(t, strings.HasPrefix(MustGenerate("user"), "user-"))
}
