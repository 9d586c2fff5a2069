package vector

import (
	"github.com/hyperjump/kotae/internal/pipeline"
)

// NewStore creates a Store of the given type ("qdrant" or "memory").
func NewStore(storeType, host string, port int, collection string, dimensions int) (Store, error) {
	switch storeType {
	case "qdrant":
		return NewQdrantStore(host, port, collection, dimensions)
	case "memory", "":
		return NewMemoryStore(dimensions)
	default:
		return nil, pipeline.Configf("unknown vector store type %q (use qdrant or memory)", storeType)
	}
}
