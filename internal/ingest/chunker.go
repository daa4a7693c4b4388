package ingest

import (
	"strings"

	"github.com/google/uuid"
	"github.com/veldtlabs/stratad/internal/vectorstore"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits a document into fragments of at most maxLen characters with
// overlap characters of repeated context between consecutive fragments.
// Every chunk inherits the document's hierarchy and sanitized metadata
// unmodified; page provenance is resolved from the chunk's start offset.
func Chunk(doc Document, maxLen, overlap int) []vectorstore.Chunk {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}
	if overlap < 0 || overlap >= maxLen {
		overlap = DefaultChunkOverlap % maxLen
	}

	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	// Work in runes so multi-byte text never splits mid-character, but
	// keep byte offsets for page lookup.
	runes := []rune(text)
	byteOff := make([]int, len(runes)+1)
	for i, r := range runes {
		byteOff[i+1] = byteOff[i] + len(string(r))
	}

	step := maxLen - overlap
	var chunks []vectorstore.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, vectorstore.Chunk{
				ID:        uuid.NewString(),
				Content:   content,
				Source:    doc.Source,
				Page:      pageAt(doc.Pages, byteOff[start]),
				Hierarchy: doc.Hierarchy,
				Extra:     copyMetadata(doc.Extra),
			})
		}

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// pageAt returns the page number covering the byte offset, or 0 when the
// document has no page segmentation.
func pageAt(pages []Page, offset int) int {
	for _, p := range pages {
		if offset >= p.Start && offset < p.End {
			return p.Number
		}
	}
	// An offset past the last page boundary (inter-page separators)
	// belongs to the nearest preceding page.
	for i := len(pages) - 1; i >= 0; i-- {
		if offset >= pages[i].Start {
			return pages[i].Number
		}
	}
	return 0
}

func copyMetadata(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
