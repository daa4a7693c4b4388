package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("stratad.vectorstore.chromem")

// chunkCollection is the single collection holding an organization's chunks.
// Isolation is structural: each organization gets its own database directory.
const chunkCollection = "chunks"

// ChromemConfig holds configuration for one chromem-go embedded database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Each organization's
	// store uses its own directory under the configured store root.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, exact similarity search, automatic persistence to
// gob files. One ChromemStore corresponds to one organization's directory.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	// mu serializes writes (Add/Reset). Queries run lock-free against
	// chromem's own synchronization and may observe a store mid-rebuild.
	mu sync.Mutex
}

// NewChromemStore opens (or creates) the persistent database at config.Path.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Debug("chromem store opened",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// embeddingFunc adapts the Embedder interface to chromem's callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds and inserts chunks into the store.
func (s *ChromemStore) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil, ErrEmptyChunks
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	// Embed outside the write lock; only the insert needs serialization.
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Metadata:  chunk.Metadata(),
			Embedding: embeddings[i],
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.db.GetOrCreateCollection(chunkCollection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting/creating collection: %w", err)
	}

	// Concurrency 1: embeddings are already computed.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding chunks: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added chunks to chromem",
		zap.String("path", s.config.Path),
		zap.Int("count", len(chunks)),
	)

	return ids, nil
}

// Query returns up to k nearest chunks matching the metadata filter exactly.
func (s *ChromemStore) Query(ctx context.Context, text string, k int, filter map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if text == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := s.db.GetCollection(chunkCollection, s.embeddingFunc())
	if collection == nil {
		// Store exists but holds nothing yet; empty result, not an error.
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, text, k, filter, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	return searchResults, nil
}

// Reset removes all stored chunks, leaving an empty store.
func (s *ChromemStore) Reset(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(chunkCollection, s.embeddingFunc()) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(chunkCollection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("reset chromem store", zap.String("path", s.config.Path))
	return nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count() int {
	collection := s.db.GetCollection(chunkCollection, s.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// Close closes the store. chromem-go persists automatically, so this only
// logs; the method exists to satisfy Store.
func (s *ChromemStore) Close() error {
	s.logger.Debug("chromem store closed", zap.String("path", s.config.Path))
	return nil
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
