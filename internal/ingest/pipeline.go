package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/vectorstore"
	"go.uber.org/zap"
)

// Pipeline loads, classifies, sanitizes, and chunks knowledge-base files.
type Pipeline struct {
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// NewPipeline creates a pipeline with the given chunking parameters.
func NewPipeline(chunkSize, chunkOverlap int, logger *zap.Logger) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap % chunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// SanitizeMetadata strips format-incidental metadata that must never leak
// into retrieval filters, and removes keys with empty values so filter
// predicates never match against absent data. PDF sources additionally lose
// the extractor's info-dictionary noise (producer, creator, dates, ...).
func SanitizeMetadata(meta map[string]string, source string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	if strings.HasSuffix(strings.ToLower(source), ".pdf") {
		sanitizePDFExtras(meta)
	}
	for k, v := range meta {
		if v == "" {
			delete(meta, k)
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// LoadFile loads a single file and returns its chunks, each carrying the
// hierarchy computed once for the document. rel is the file path relative
// to the knowledge root.
func (p *Pipeline) LoadFile(path, rel string) ([]vectorstore.Chunk, error) {
	doc, err := Load(path, rel)
	if err != nil {
		return nil, err
	}
	doc.Extra = SanitizeMetadata(doc.Extra, doc.Source)
	return Chunk(doc, p.chunkSize, p.chunkOverlap), nil
}

// LoadAll walks the whole knowledge tree once and returns the chunks of
// every loadable file. When organizationFilter is non-empty, documents
// outside that organization are excluded before any further processing.
// The isolation boundary starts at load time, not at storage time.
//
// Unsupported, corrupt, and unreadable files are logged and skipped;
// partial failure never aborts the batch. Zero chunks is a valid result.
func (p *Pipeline) LoadAll(root, organizationFilter string) ([]vectorstore.Chunk, error) {
	var chunks []vectorstore.Chunk

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			p.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			p.logger.Warn("skipping file outside root", zap.String("path", path), zap.Error(err))
			return nil
		}

		if organizationFilter != "" {
			if hierarchy.Classify(rel).Organization != organizationFilter {
				return nil
			}
		}

		fileChunks, err := p.LoadFile(path, rel)
		switch {
		case errors.Is(err, ErrUnsupportedFormat):
			p.logger.Warn("skipping unsupported file type", zap.String("file", rel))
			return nil
		case errors.Is(err, ErrCorruptFile):
			p.logger.Warn("skipping corrupt file", zap.String("file", rel), zap.Error(err))
			return nil
		case err != nil:
			p.logger.Warn("skipping file", zap.String("file", rel), zap.Error(err))
			return nil
		}

		chunks = append(chunks, fileChunks...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking knowledge root %s: %w", root, err)
	}

	p.logger.Debug("loaded knowledge tree",
		zap.String("root", root),
		zap.String("organization_filter", organizationFilter),
		zap.Int("chunks", len(chunks)),
	)

	return chunks, nil
}
