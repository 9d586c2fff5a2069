// Package rag answers questions by retrieving indexed chunks and prompting a
// generative model with them.
package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/vector"
)

// Retriever embeds a query and finds the closest indexed chunks.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.Store
	log      *zap.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(embedder embedding.Embedder, store vector.Store, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, log: log}
}

// Retrieve returns up to topK passages ranked by similarity, descending.
// Ties are broken by chunk id ascending. An empty index yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter *vector.Filter) ([]*models.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pipeline.Inputf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, pipeline.Inputf("top_k must be positive, got %d", topK)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, pipeline.AtStage("embed", err)
	}

	hits, err := r.store.Search(ctx, vec, topK, filter)
	if err != nil {
		return nil, pipeline.AtStage("retrieve", err)
	}

	passages := make([]*models.Passage, len(hits))
	for i, h := range hits {
		passages[i] = &models.Passage{
			ChunkID:    h.ChunkID,
			DocumentID: h.Payload.DocumentID,
			Text:       h.Payload.Text,
			Source:     h.Payload.Source,
			Page:       h.Payload.Page,
			Offset:     h.Payload.Offset,
			Score:      h.Score,
		}
	}
	r.log.Debug("retrieved passages", zap.String("query", query), zap.Int("hits", len(passages)))
	return passages, nil
}
