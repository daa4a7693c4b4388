package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfNoiseKeys are PDF info-dictionary entries that must never leak into
// retrieval filters. sanitizeMetadata strips them from chunk metadata.
var pdfNoiseKeys = []string{
	"producer", "creator", "creationdate", "author", "moddate",
	"title", "total_pages", "page_label",
}

// loadPDF extracts text page by page. Pages that fail to decode are skipped;
// a document-level parse failure is reported as corrupt by the caller.
func loadPDF(path string) (string, []Page, map[string]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		start := text.Len()
		text.WriteString(pageText)
		pages = append(pages, Page{Number: i, Start: start, End: text.Len()})
	}

	extra := pdfInfoMetadata(r)

	return strings.TrimSpace(text.String()), pages, extra, nil
}

// pdfInfoMetadata flattens the PDF info dictionary into string metadata.
// The extraction is best-effort; ledongthuc/pdf panics on some malformed
// trailer values, so partial results are kept.
func pdfInfoMetadata(r *pdf.Reader) (extra map[string]string) {
	defer func() { _ = recover() }()

	extra = map[string]string{"total_pages": strconv.Itoa(r.NumPage())}
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return extra
	}
	for _, key := range info.Keys() {
		val := info.Key(key)
		if val.Kind() == pdf.String {
			extra[strings.ToLower(key)] = val.Text()
		}
	}
	return extra
}

// sanitizePDFExtras removes noise keys in place.
func sanitizePDFExtras(extra map[string]string) {
	for _, key := range pdfNoiseKeys {
		delete(extra, key)
	}
}
