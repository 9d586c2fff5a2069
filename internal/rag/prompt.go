package rag

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/generate"
)

const answerSystem = `You answer questions using only the provided context passages.
Each passage is labeled [S1], [S2], and so on. Cite the passages you use by
including their labels, for example [S1] or [S2][S3], directly in your answer.
If the context does not contain enough information to answer, say so plainly
instead of guessing.`

const rewriteSystem = `You improve search queries. Given a question, respond with a single
rephrased search query that is more likely to match relevant passages in a
document index. Respond with the query only, no explanation.`

// buildAnswerRequest formats the question and assembled context for generation.
func buildAnswerRequest(question string, asmCtx *AssembledContext, maxTokens int) *generate.Request {
	return &generate.Request{
		System:    answerSystem,
		Prompt:    fmt.Sprintf("Context:\n%s\n\nQuestion: %s", asmCtx.Text, question),
		MaxTokens: maxTokens,
	}
}

// buildRewriteRequest asks the model for a better retrieval query.
func buildRewriteRequest(question string) *generate.Request {
	return &generate.Request{
		System:    rewriteSystem,
		Prompt:    question,
		MaxTokens: 200,
	}
}
