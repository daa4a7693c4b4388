package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/ingest"
)

func TestChunk_Empty(t *testing.T) {
	assert.Nil(t, ingest.Chunk(ingest.Document{Text: ""}, 100, 20))
	assert.Nil(t, ingest.Chunk(ingest.Document{Text: "   \n\t  "}, 100, 20))
}

func TestChunk_SingleShortDocument(t *testing.T) {
	doc := ingest.Document{
		Text:   "short content",
		Source: "acme/handbook.md",
	}
	chunks := ingest.Chunk(doc, 100, 20)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short content", chunks[0].Content)
	assert.Equal(t, "acme/handbook.md", chunks[0].Source)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunk_SizeAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 chars
	chunks := ingest.Chunk(ingest.Document{Text: text}, 100, 20)

	// step = 100 - 20 = 80, so 300 chars yield starts at 0, 80, 160, 240.
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 100)
	}
	// Consecutive chunks repeat the trailing overlap of the previous one.
	assert.Equal(t, chunks[0].Content[80:], chunks[1].Content[:20])
	assert.Equal(t, chunks[1].Content[80:], chunks[2].Content[:20])
	assert.Equal(t, chunks[2].Content[80:], chunks[3].Content[:20])
}

func TestChunk_DistinctIDs(t *testing.T) {
	text := strings.Repeat("x", 500)
	chunks := ingest.Chunk(ingest.Document{Text: text}, 100, 20)
	require.Greater(t, len(chunks), 1)

	seen := make(map[string]bool)
	for _, c := range chunks {
		assert.False(t, seen[c.ID], "duplicate chunk ID %s", c.ID)
		seen[c.ID] = true
	}
}

func TestChunk_InheritsHierarchyAndMetadata(t *testing.T) {
	doc := ingest.Document{
		Text:      strings.Repeat("content ", 100),
		Source:    "acme/sales/jordan/review.md",
		Hierarchy: hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
		Extra:     map[string]string{"subject": "quarterly review"},
	}
	chunks := ingest.Chunk(doc, 200, 40)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.Equal(t, doc.Hierarchy, c.Hierarchy)
		assert.Equal(t, doc.Source, c.Source)
		assert.Equal(t, "quarterly review", c.Extra["subject"])
	}

	// Each chunk owns its own metadata copy.
	chunks[0].Extra["subject"] = "mutated"
	assert.Equal(t, "quarterly review", chunks[1].Extra["subject"])
}

func TestChunk_PageAttribution(t *testing.T) {
	// Two pages of 150 bytes each, separated at offset 150.
	text := strings.Repeat("a", 150) + strings.Repeat("b", 150)
	doc := ingest.Document{
		Text: text,
		Pages: []ingest.Page{
			{Number: 1, Start: 0, End: 150},
			{Number: 2, Start: 150, End: 300},
		},
	}
	chunks := ingest.Chunk(doc, 100, 0)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
	assert.Equal(t, 2, chunks[2].Page)
}

func TestChunk_MultiByteText(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 50)
	chunks := ingest.Chunk(ingest.Document{Text: text}, 100, 20)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		// Splitting on rune boundaries keeps every chunk valid UTF-8.
		assert.True(t, strings.ToValidUTF8(c.Content, "?") == c.Content)
	}
}
