package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/pipeline"
)

// MemoryStore is an in-memory vector store using brute-force cosine search.
// Used in tests and for small corpora without a Qdrant deployment.
type MemoryStore struct {
	dimensions int
	mu         sync.RWMutex
	entries    map[string]Entry
}

// NewMemoryStore creates an in-memory store with the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, pipeline.Configf("vector dimensions must be positive, got %d", dimensions)
	}
	return &MemoryStore{
		dimensions: dimensions,
		entries:    make(map[string]Entry),
	}, nil
}

// EnsureCollection is a no-op; the map is the collection.
func (m *MemoryStore) EnsureCollection(ctx context.Context) error { return nil }

// Upsert stores entries keyed by chunk id; same id replaces.
func (m *MemoryStore) Upsert(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return 0, pipeline.Inputf("vector dimension mismatch: got %d, expected %d", len(e.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		e.Vector = vec
		m.entries[e.ChunkID] = e
	}
	return len(entries), nil
}

func matches(p Payload, f *Filter) bool {
	if f == nil {
		return true
	}
	if f.DocumentID != "" && p.DocumentID != f.DocumentID {
		return false
	}
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	return true
}

// Search scores every stored entry and returns the top k. Ties are broken by
// chunk id ascending so results are stable across calls.
func (m *MemoryStore) Search(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Scored, error) {
	if topK <= 0 {
		return nil, pipeline.Inputf("top_k must be positive, got %d", topK)
	}
	if len(vec) != m.dimensions {
		return nil, pipeline.Inputf("query dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	scored := make([]Scored, 0, len(m.entries))
	for id, e := range m.entries {
		if !matches(e.Payload, filter) {
			continue
		}
		scored = append(scored, Scored{
			ChunkID: id,
			Score:   CosineSimilarity(vec, e.Vector),
			Payload: e.Payload,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteByDocument removes all entries with the given document id.
func (m *MemoryStore) DeleteByDocument(ctx context.Context, docID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if e.Payload.DocumentID == docID {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored entries.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Sample returns up to n entries in map iteration order.
func (m *MemoryStore) Sample(ctx context.Context, n int) ([]Scored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Scored, 0, n)
	for id, e := range m.entries {
		if len(out) >= n {
			break
		}
		out = append(out, Scored{ChunkID: id, Payload: e.Payload})
	}
	return out, nil
}

// Drop clears all entries.
func (m *MemoryStore) Drop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
