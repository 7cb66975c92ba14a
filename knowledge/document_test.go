package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello world"}, ChunkText("  hello world \n", 100, 10))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, ChunkText("   ", 100, 10))
	})

	t.Run("windows overlap and respect size", func(t *testing.T) {
		text := strings.Repeat("abcd ", 100) // 500 runes
		chunks := ChunkText(text, 120, 20)
		require.Greater(t, len(chunks), 4)

		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 120)
			assert.NotEmpty(t, c)
		}

		// cut on whitespace, so chunks hold whole words
		for _, w := range strings.Fields(chunks[0]) {
			assert.Equal(t, "abcd", w)
		}
	})

	t.Run("no whitespace falls back to hard cut", func(t *testing.T) {
		chunks := ChunkText(strings.Repeat("x", 250), 100, 0)
		assert.Equal(t, []int{100, 100, 50}, []int{len(chunks[0]), len(chunks[1]), len(chunks[2])})
	})

	t.Run("invalid overlap is ignored", func(t *testing.T) {
		chunks := ChunkText(strings.Repeat("y", 30), 10, 10)
		assert.Len(t, chunks, 3)
	})
}

func TestChunkDocument_StableIDsAndMetadata(t *testing.T) {
	doc := Document{Name: "faq", Content: strings.Repeat("word ", 50), Metadata: map[string]string{"source": "faq.md"}}

	a := chunkDocument(doc, 60, 10)
	b := chunkDocument(doc, 60, 10)
	require.Equal(t, len(a), len(b))
	require.NotEmpty(t, a)

	assert.Equal(t, a[0].ID, b[0].ID)
	assert.NotEqual(t, a[0].ID, a[1].ID)
	assert.Equal(t, "0", a[0].Metadata["chunk"])
	assert.Equal(t, "faq.md", a[1].Metadata["source"])

	// source metadata is not shared between chunks
	a[0].Metadata["x"] = "y"
	assert.NotContains(t, a[1].Metadata, "x")
}
