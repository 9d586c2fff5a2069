// Package storage persists the document registry backing ingestion bookkeeping.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Registry tracks which documents have been ingested, with enough source
// metadata (mtime, size) to skip unchanged files on re-ingestion. Chunk text
// and vectors live in the vector store; the registry holds only document rows.
type Registry interface {
	Upsert(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error) // (nil, nil) when absent
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.Document, error)
	Count(ctx context.Context) (int64, error)
	Wipe(ctx context.Context) error
	Close() error
}
