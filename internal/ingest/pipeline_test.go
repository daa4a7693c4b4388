package ingest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/ingest"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, ingest.SupportedExtension("notes.md"))
	assert.True(t, ingest.SupportedExtension("notes.TXT"))
	assert.True(t, ingest.SupportedExtension("report.pdf"))
	assert.True(t, ingest.SupportedExtension("report.docx"))
	assert.True(t, ingest.SupportedExtension("deck.pptx"))
	assert.False(t, ingest.SupportedExtension("image.png"))
	assert.False(t, ingest.SupportedExtension("noextension"))
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "image.png", "not really an image")

	_, err := ingest.Load(filepath.Join(dir, "image.png"), "image.png")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := ingest.Load(filepath.Join(t.TempDir(), "absent.md"), "absent.md")
	assert.ErrorIs(t, err, ingest.ErrCorruptFile)
}

func TestLoad_CorruptPDF(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "broken.pdf", "this is not a pdf body")

	_, err := ingest.Load(filepath.Join(dir, "broken.pdf"), "broken.pdf")
	assert.ErrorIs(t, err, ingest.ErrCorruptFile)
}

func TestLoad_ClassifiesHierarchy(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "acme/sales/jordan/notes.md", "note content")

	doc, err := ingest.Load(
		filepath.Join(dir, "acme/sales/jordan/notes.md"),
		"acme/sales/jordan/notes.md",
	)
	require.NoError(t, err)
	assert.Equal(t, "note content", doc.Text)
	assert.Equal(t, "acme/sales/jordan/notes.md", doc.Source)
	assert.Equal(t,
		hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
		doc.Hierarchy)
}

func TestSanitizeMetadata(t *testing.T) {
	t.Run("strips pdf info noise", func(t *testing.T) {
		meta := map[string]string{
			"producer":     "LibreOffice",
			"creator":      "Writer",
			"creationdate": "D:20250101000000Z",
			"author":       "someone",
			"moddate":      "D:20250102000000Z",
			"title":        "doc title",
			"total_pages":  "12",
			"page_label":   "iv",
			"subject":      "kept",
		}
		out := ingest.SanitizeMetadata(meta, "acme/report.pdf")
		assert.Equal(t, map[string]string{"subject": "kept"}, out)
	})

	t.Run("keeps pdf keys on non-pdf sources", func(t *testing.T) {
		meta := map[string]string{"title": "slide deck"}
		out := ingest.SanitizeMetadata(meta, "acme/deck.pptx")
		assert.Equal(t, map[string]string{"title": "slide deck"}, out)
	})

	t.Run("drops empty values", func(t *testing.T) {
		meta := map[string]string{"subject": "", "kept": "v"}
		out := ingest.SanitizeMetadata(meta, "acme/notes.md")
		assert.Equal(t, map[string]string{"kept": "v"}, out)
	})

	t.Run("nil for empty result", func(t *testing.T) {
		assert.Nil(t, ingest.SanitizeMetadata(nil, "a.md"))
		assert.Nil(t, ingest.SanitizeMetadata(map[string]string{"x": ""}, "a.md"))
	})
}

func TestPipelineLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "acme/sales/targets.md", "sales targets for the quarter")

	p := ingest.NewPipeline(100, 20, zap.NewNop())
	chunks, err := p.LoadFile(filepath.Join(dir, "acme/sales/targets.md"), "acme/sales/targets.md")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "sales targets for the quarter", chunks[0].Content)
	assert.Equal(t, hierarchy.Path{Organization: "acme", Subunit: "sales"}, chunks[0].Hierarchy)
}

func TestPipelineLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "acme/handbook.md", "acme handbook")
	writeFixture(t, dir, "acme/sales/targets.md", "acme sales targets")
	writeFixture(t, dir, "globex/handbook.md", "globex handbook")
	writeFixture(t, dir, "root-note.md", "unscoped root note")
	writeFixture(t, dir, "acme/.hidden.md", "must be skipped")
	writeFixture(t, dir, "acme/~$lock.docx", "office lock file")
	writeFixture(t, dir, "acme/image.png", "unsupported")

	p := ingest.NewPipeline(1000, 200, zap.NewNop())

	t.Run("unfiltered walk loads every supported file", func(t *testing.T) {
		chunks, err := p.LoadAll(dir, "")
		require.NoError(t, err)

		var contents []string
		for _, c := range chunks {
			contents = append(contents, c.Content)
		}
		assert.ElementsMatch(t, []string{
			"acme handbook",
			"acme sales targets",
			"globex handbook",
			"unscoped root note",
		}, contents)
	})

	t.Run("organization filter excludes other tenants", func(t *testing.T) {
		chunks, err := p.LoadAll(dir, "acme")
		require.NoError(t, err)

		for _, c := range chunks {
			assert.Equal(t, "acme", c.Hierarchy.Organization)
		}
		var contents []string
		for _, c := range chunks {
			contents = append(contents, c.Content)
		}
		// The root-level note has no organization and is excluded too.
		assert.ElementsMatch(t, []string{"acme handbook", "acme sales targets"}, contents)
	})

	t.Run("missing root is an error", func(t *testing.T) {
		_, err := p.LoadAll(filepath.Join(dir, "does-not-exist"), "")
		assert.Error(t, err)
	})

	t.Run("empty tree yields zero chunks", func(t *testing.T) {
		chunks, err := p.LoadAll(t.TempDir(), "")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}
