// Package ingest turns source documents into embedded, indexed chunks.
package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits document text into overlapping character windows. Chunks are
// exact substrings of the input, so concatenating them with the overlapping
// prefixes removed reproduces the original text.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker creates a chunker. overlap must be smaller than maxChars; the
// config layer validates this before construction.
func NewChunker(maxChars, overlap int) *Chunker {
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Chunk splits the joined page text of a document into models.Chunks with
// stable ids, byte offsets, and page provenance. Whitespace-only input yields
// no chunks.
func (c *Chunker) Chunk(docID, source string, pages []extract.Page) []*models.Chunk {
	text, pageStarts := extract.JoinPages(pages)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []*models.Chunk
	seq := 0
	start := 0
	for start < len(text) {
		end := start + c.maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.cut(text, start, end)
		}

		chunks = append(chunks, &models.Chunk{
			ID:         fileid.ChunkID(docID, seq),
			DocumentID: docID,
			Text:       text[start:end],
			Seq:        seq,
			Page:       extract.PageAt(pages, pageStarts, start),
			Offset:     start,
			Source:     source,
		})
		seq++

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cut picks the window's end position. It prefers a paragraph break, then a
// sentence end, inside the back quarter of the window; otherwise it cuts at
// the size limit on a rune boundary so the following chunk starts exactly
// overlap bytes earlier.
func (c *Chunker) cut(text string, start, limit int) int {
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}
	floor := limit - c.maxChars/4
	if floor < start+1 {
		floor = start + 1
	}

	window := text[floor:limit]
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	best := -1
	for _, mark := range []string{". ", ".\n", "? ", "?\n", "! ", "!\n"} {
		if i := strings.LastIndex(window, mark); i >= 0 && i+len(mark) > best {
			best = i + len(mark)
		}
	}
	if best >= 0 {
		return floor + best
	}
	return limit
}
