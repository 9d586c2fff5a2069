// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document represents an ingested source document with registry metadata.
type Document struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	SourcePath  string    `json:"source_path,omitempty" db:"source_path"`
	Pages       int       `json:"pages" db:"pages"`
	ChunkCount  int       `json:"chunk_count" db:"chunk_count"`
	SourceMtime int64     `json:"source_mtime,omitempty" db:"source_mtime"`
	SourceSize  int64     `json:"source_size,omitempty" db:"source_size"`
	IngestedAt  time.Time `json:"ingested_at" db:"ingested_at"`
}

// Chunk is a contiguous span of a document's text prepared for embedding.
// ID is derived from the document id and sequence index, so re-ingesting the
// same document produces the same chunk ids and upserts replace cleanly.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Seq        int       `json:"seq"`
	Page       int       `json:"page"`   // 1-based page the chunk starts on (0 when unknown)
	Offset     int       `json:"offset"` // byte offset of the chunk within the document text
	Source     string    `json:"source"` // human-readable source name (filename)
	Embedding  []float32 `json:"-"`
}

// End returns the exclusive byte offset where the chunk's text ends.
func (c *Chunk) End() int { return c.Offset + len(c.Text) }

// Overlaps reports whether two chunks cover overlapping byte ranges of the
// same document. Used by context assembly to drop near-duplicate passages.
func (c *Chunk) Overlaps(other *Chunk) bool {
	if c.DocumentID != other.DocumentID {
		return false
	}
	return c.Offset < other.End() && other.Offset < c.End()
}

// IngestReport summarizes one document's ingestion.
type IngestReport struct {
	DocumentID string   `json:"document_id"`
	Pages      int      `json:"pages"`
	Chunks     int      `json:"chunks"`
	Indexed    int      `json:"indexed"`
	FailedIDs  []string `json:"failed_ids,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"` // unchanged since last ingest
}
