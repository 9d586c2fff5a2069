// Package extract provides page-structured text extraction from document files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is one page (or page-equivalent block) of extracted document text.
// Formats without a page concept yield a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its pages in reading order.
// PDF yields one Page per physical page; XLSX yields one Page per sheet;
// plain text formats (.txt, .md, .rst) yield a single page. Unknown
// extensions are treated as plain text.
func (e *Extractor) Extract(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Page, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// JoinPages concatenates page texts into one document string with a newline
// between pages, and returns the byte offset at which each page begins.
// Offsets let callers map a chunk offset back to its source page.
func JoinPages(pages []Page) (text string, pageStarts []int) {
	var b strings.Builder
	pageStarts = make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			b.WriteByte('\n')
		}
		pageStarts[i] = b.Len()
		b.WriteString(p.Text)
	}
	return b.String(), pageStarts
}

// PageAt returns the 1-based page number containing the given byte offset.
// Returns 0 when pages is empty.
func PageAt(pages []Page, pageStarts []int, offset int) int {
	if len(pages) == 0 {
		return 0
	}
	page := pages[0].Number
	for i, start := range pageStarts {
		if offset < start {
			break
		}
		page = pages[i].Number
	}
	return page
}
