// Package fileid derives stable document and chunk identifiers.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const prefix = "doc:"

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a file replaces its
// previous index entries rather than duplicating them.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// ContentDocID returns a stable document ID for raw content without a path
// (e.g. an uploaded document body). Identical content yields the same ID.
func ContentDocID(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])
}

// ChunkID returns the ID for a document's chunk at the given sequence index.
// Deterministic so that upserting the same chunk twice replaces the entry.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s:%d", docID, seq)
}
