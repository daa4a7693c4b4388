// Package vectorstore provides the per-organization nearest-neighbor index.
package vectorstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/veldtlabs/stratad/internal/hierarchy"
)

// Sentinel errors for vector store operations.
var (
	// ErrEmptyChunks indicates empty or nil chunks passed to Add.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Metadata keys for chunk provenance.
const (
	MetaSource = "source"
	MetaPage   = "page"
)

// Chunk is a contiguous fragment of an ingested document together with the
// hierarchy it was classified into and its provenance. Chunks are immutable
// once created; they are destroyed only by a full tenant store rebuild.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the chunk text.
	Content string

	// Source identifies the originating file, relative to the knowledge root.
	Source string

	// Page is the 1-based page or section number where applicable, 0 otherwise.
	Page int

	// Hierarchy is the path computed once for the source document. Every
	// chunk of a document carries the same value.
	Hierarchy hierarchy.Path

	// Extra carries loader-provided metadata that survived sanitization.
	// Hierarchy and provenance fields always win on key collision.
	Extra map[string]string
}

// Metadata renders the chunk's hierarchy and provenance as the flat string
// map stored alongside its vector. Empty values produce no entry.
func (c Chunk) Metadata() map[string]string {
	meta := make(map[string]string, len(c.Extra)+6)
	for k, v := range c.Extra {
		if v != "" {
			meta[k] = v
		}
	}
	for k, v := range c.Hierarchy.Metadata() {
		meta[k] = v
	}
	if c.Source != "" {
		meta[MetaSource] = c.Source
	}
	if c.Page > 0 {
		meta[MetaPage] = strconv.Itoa(c.Page)
	}
	return meta
}

// SearchResult is a chunk returned from a nearest-neighbor query.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the stored chunk metadata.
	Metadata map[string]string
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is one organization's isolated nearest-neighbor index.
//
// A Store never contains content from more than one organization; the
// registry enforces that invariant before chunks reach Add. Implementations
// must serialize Add/Reset against each other; Query may run concurrently
// with writes and observe a store mid-rebuild.
type Store interface {
	// Add embeds and inserts chunks. Returns the chunk IDs.
	Add(ctx context.Context, chunks []Chunk) ([]string, error)

	// Query returns up to k nearest chunks whose metadata matches every
	// entry of filter exactly. An empty result is valid, not an error.
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]SearchResult, error)

	// Reset removes all stored chunks.
	Reset(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count() int

	// Close releases store resources.
	Close() error
}
