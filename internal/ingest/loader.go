// Package ingest loads knowledge-base files, classifies them into the
// tenant hierarchy, and splits them into overlapping chunks ready for the
// per-organization vector stores.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/veldtlabs/stratad/internal/hierarchy"
)

// Sentinel errors for ingestion. Both are non-fatal at batch level: LoadAll
// logs and skips the affected file.
var (
	// ErrUnsupportedFormat indicates a file extension with no loader.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptFile indicates a file whose loader failed to parse it.
	ErrCorruptFile = errors.New("corrupt or unreadable file")
)

// Document is a unit of ingested content, owned by the pipeline until it is
// chunked.
type Document struct {
	// Text is the extracted plain text.
	Text string

	// Source is the file path relative to the knowledge root.
	Source string

	// Hierarchy is the path classified from Source.
	Hierarchy hierarchy.Path

	// Pages segments Text by page or slide where the format has them.
	Pages []Page

	// Extra is format-incidental metadata emitted by the loader. It is
	// sanitized before any of it reaches chunk metadata.
	Extra map[string]string
}

// Page marks the byte range of one page or slide within Document.Text.
type Page struct {
	Number int
	Start  int
	End    int
}

// loader extracts plain text from one file format.
type loader func(path string) (text string, pages []Page, extra map[string]string, err error)

// loaders dispatches by lowercased file extension.
var loaders = map[string]loader{
	".md":   loadText,
	".txt":  loadText,
	".pdf":  loadPDF,
	".docx": loadDOCX,
	".pptx": loadPPTX,
}

// SupportedExtension reports whether files with the given name can be loaded.
func SupportedExtension(name string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load reads the file at path and returns a Document classified by rel, the
// path relative to the knowledge root. Returns ErrUnsupportedFormat for
// unknown extensions and ErrCorruptFile for files the loader cannot parse.
func Load(path, rel string) (Document, error) {
	load, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, rel)
	}

	text, pages, extra, err := load(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrCorruptFile, rel, err)
	}

	return Document{
		Text:      text,
		Source:    filepath.ToSlash(rel),
		Hierarchy: hierarchy.Classify(rel),
		Pages:     pages,
		Extra:     extra,
	}, nil
}

// loadText reads plain text and markdown files as-is.
func loadText(path string) (string, []Page, map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, nil, err
	}
	return string(content), nil, nil, nil
}
