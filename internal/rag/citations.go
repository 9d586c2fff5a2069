package rag

import (
	"regexp"
	"strconv"

	"github.com/hyperjump/kotae/internal/models"
)

var citationPattern = regexp.MustCompile(`\[S(\d+)\]`)

// extractCitations maps [S n] labels in the answer back to chunk ids, in
// first-mention order without duplicates. Labels that point outside the
// context are ignored; an answer with no labels yields nil.
func extractCitations(answer string, passages []*models.Passage) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(passages) {
			continue
		}
		id := passages[n-1].ChunkID
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
