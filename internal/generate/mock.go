package generate

import (
	"context"
	"sync"
)

// MockGenerator returns scripted responses for tests and offline mode.
// With no script, it echoes a fixed acknowledgment of the prompt.
type MockGenerator struct {
	mu        sync.Mutex
	responses []*Result
	errs      []error
	calls     []*Request
}

// NewMockGenerator creates a generator that returns the given results in
// order, then repeats the last one.
func NewMockGenerator(responses []*Result) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// FailWith queues errors returned before any scripted responses.
func (g *MockGenerator) FailWith(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, errs...)
}

// Generate returns the next scripted error or response.
func (g *MockGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return nil, err
	}
	if len(g.responses) == 0 {
		return &Result{Text: "mock answer", StopReason: "end_turn"}, nil
	}
	resp := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return resp, nil
}

// Calls returns the requests seen so far.
func (g *MockGenerator) Calls() []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Request, len(g.calls))
	copy(out, g.calls)
	return out
}

// Name returns "mock".
func (g *MockGenerator) Name() string { return "mock" }
