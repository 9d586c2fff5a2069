// Package embedding provides text embedding via an external embedding service.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. Implementations
// are stateless with respect to calls and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in one round-trip where the backend supports it.
	// The result preserves input order 1:1.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Ping verifies the service is reachable and that its output dimension
	// matches Dimensions(). Called once at startup; a mismatch is fatal.
	Ping(ctx context.Context) error
	Close() error
}
