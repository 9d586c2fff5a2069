// Package vector provides the vector store boundary: indexing and
// approximate-nearest-neighbor search over chunk embeddings.
package vector

import "context"

// Payload is the data persisted alongside each embedding. It is everything
// needed to assemble context and cite sources without consulting other storage.
type Payload struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	Seq        int    `json:"seq"`
	Offset     int    `json:"offset"`
}

// Entry is one (chunk id, embedding, payload) triple. Uniquely keyed by
// ChunkID; upserting the same id replaces the stored entry.
type Entry struct {
	ChunkID string
	Vector  []float32
	Payload Payload
}

// Scored is a search hit: the stored entry plus its similarity score.
type Scored struct {
	ChunkID string
	Score   float64
	Payload Payload
}

// Filter restricts a search or count to matching payloads. Zero fields match everything.
type Filter struct {
	DocumentID string
	Source     string
}

// Store is the vector store boundary. The collection is created once with a
// fixed dimension and cosine distance; both are invariants for the life of
// the collection.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context) error
	// Upsert writes entries, replacing any with the same chunk id.
	// Returns the number written. An empty slice is a no-op returning 0.
	Upsert(ctx context.Context, entries []Entry) (int, error)
	// Search returns up to topK entries ranked by cosine similarity,
	// descending; equal scores are ordered by chunk id ascending.
	Search(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Scored, error)
	// DeleteByDocument removes all entries of the given document id and
	// returns how many were removed.
	DeleteByDocument(ctx context.Context, docID string) (int, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// Sample returns up to n stored entries (payload only, score 0) for
	// inspection; no ordering is guaranteed.
	Sample(ctx context.Context, n int) ([]Scored, error)
	// Drop deletes the collection and recreates it empty.
	Drop(ctx context.Context) error
	Close() error
}
