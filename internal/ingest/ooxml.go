package ingest

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxZipEntrySize limits decompressed size of individual zip entries to
// prevent zip bombs (100 MB).
const maxZipEntrySize = 100 << 20

// loadDOCX streams word/document.xml, collecting run text (<w:t>) with
// paragraph breaks on </w:p>. No DOM tree is built.
func loadDOCX(path string) (string, []Page, map[string]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	data, err := readZipEntry(&zr.Reader, "word/document.xml")
	if err != nil {
		return "", nil, nil, err
	}

	text, err := ooxmlText(data, "t", "p")
	if err != nil {
		return "", nil, nil, fmt.Errorf("parse document.xml: %w", err)
	}
	return text, nil, nil, nil
}

var slideEntryRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// loadPPTX extracts text slide by slide; each slide becomes one Page so
// chunk provenance can point at it.
func loadPPTX(path string) (string, []Page, map[string]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	type slideEntry struct {
		number int
		file   *zip.File
	}
	var slides []slideEntry
	for _, f := range zr.File {
		m := slideEntryRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideEntry{number: n, file: f})
	}
	if len(slides) == 0 {
		return "", nil, nil, fmt.Errorf("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var text strings.Builder
	var pages []Page
	for _, s := range slides {
		data, err := readZipFile(s.file)
		if err != nil {
			return "", nil, nil, err
		}
		slideText, err := ooxmlText(data, "t", "p")
		if err != nil {
			return "", nil, nil, fmt.Errorf("parse slide %d: %w", s.number, err)
		}
		slideText = strings.TrimSpace(slideText)
		if slideText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		start := text.Len()
		text.WriteString(slideText)
		pages = append(pages, Page{Number: s.number, Start: start, End: text.Len()})
	}

	return strings.TrimSpace(text.String()), pages, nil, nil
}

// ooxmlText streams an OOXML part, concatenating character data inside
// textElem elements and emitting a newline after each breakElem.
func ooxmlText(data []byte, textElem, breakElem string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))

	var text strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				inText = false
			case breakElem:
				text.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// readZipEntry finds and reads a named entry, enforcing the size limit.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readZipFile(f)
		}
	}
	return nil, fmt.Errorf("missing %s", name)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxZipEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > maxZipEntrySize {
		return nil, fmt.Errorf("%s exceeds size limit", f.Name)
	}
	return data, nil
}
