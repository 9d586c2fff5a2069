// Package generate provides the generative model boundary used to produce answers.
package generate

import "context"

// Request is one generation call: a system instruction plus a user prompt.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Result is the model's output with stop-reason metadata.
type Result struct {
	Text       string
	StopReason string
}

// Generator is the generative model boundary. Implementations are safe for
// concurrent use and honor ctx deadlines on every call.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
	Name() string
}
