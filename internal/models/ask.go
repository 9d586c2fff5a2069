package models

import "github.com/hyperjump/kotae/internal/pipeline"

// AskRequest is a question against the indexed corpus.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	// Source restricts retrieval to chunks from the named source document.
	Source string `json:"source,omitempty"`
	// MaxRounds overrides the configured retrieval round limit (0 = use config).
	MaxRounds int `json:"max_rounds,omitempty"`
}

// Validate normalizes the request and rejects unusable input.
func (r *AskRequest) Validate(defaultTopK int) error {
	if r.Question == "" {
		return pipeline.Inputf("question cannot be empty")
	}
	if r.TopK < 0 {
		return pipeline.Inputf("top_k must be positive, got %d", r.TopK)
	}
	if r.TopK == 0 {
		r.TopK = defaultTopK
	}
	if r.TopK > 100 {
		r.TopK = 100
	}
	return nil
}

// Passage is one retrieved chunk with its similarity score, ordered
// descending by score in a retrieval result.
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Offset     int     `json:"offset"`
	Score      float64 `json:"score"`
}

// AskResponse is the answer to a question with provenance.
type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// CitedChunkIDs are the chunk ids the model referenced, best-effort.
	CitedChunkIDs []string `json:"cited_chunk_ids,omitempty"`
	// Sources are the passages that were placed in the prompt context.
	Sources []*Passage `json:"sources"`
	// Rounds is how many retrieval rounds ran before answering.
	Rounds      int    `json:"rounds"`
	StopReason  string `json:"stop_reason,omitempty"`
	QueryTimeMs int64  `json:"query_time_ms"`
}
