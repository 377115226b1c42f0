package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixSnapshot, PrefixIndex} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			require.True(t, strings.HasPrefix(id, prefix+"-"))
			body := strings.TrimPrefix(id, prefix+"-")
			assert.Len(t, body, size)
			for _, r := range body {
				assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q in %s", r, id)
			}
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := MustGenerate(PrefixSnapshot)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRequest_IsUUID(t *testing.T) {
	_, err := uuid.Parse(Request())
	assert.NoError(t, err)
	assert.NotEqual(t, Request(), Request())
}
