package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/vector"
)

// NoAnswerText is returned when retrieval finds nothing to ground an answer on.
const NoAnswerText = "I could not find relevant information in the indexed documents."

// Config tunes the ask loop.
type Config struct {
	TopK             int
	ContextBudget    int
	MaxRounds        int
	RescoreThreshold float64
	MaxTokens        int
	Retry            pipeline.RetryConfig
}

// Engine runs the full ask pipeline: retrieve, assemble, generate.
type Engine struct {
	retriever *Retriever
	assembler *Assembler
	generator generate.Generator
	cfg       Config
	log       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an engine.
func NewEngine(retriever *Retriever, generator generate.Generator, cfg Config, opts ...EngineOption) *Engine {
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 1
	}
	e := &Engine{
		retriever: retriever,
		assembler: NewAssembler(cfg.ContextBudget),
		generator: generator,
		cfg:       cfg,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask answers a question from the indexed corpus. Weak retrieval escalates
// over multiple rounds: the second round retries with a model-rewritten
// query, later rounds widen top_k. An empty index or a question with no
// matches returns a fixed no-answer response rather than a hallucinated one.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	start := time.Now()
	if err := req.Validate(e.cfg.TopK); err != nil {
		return nil, err
	}

	var filter *vector.Filter
	if req.Source != "" {
		filter = &vector.Filter{Source: req.Source}
	}
	maxRounds := req.MaxRounds
	if maxRounds < 1 || maxRounds > e.cfg.MaxRounds {
		maxRounds = e.cfg.MaxRounds
	}

	query := req.Question
	topK := req.TopK
	var best []*models.Passage
	bestAvg := -1.0
	rounds := 0

	for round := 1; round <= maxRounds; round++ {
		rounds = round
		passages, err := e.retriever.Retrieve(ctx, query, topK, filter)
		if err != nil {
			return nil, err
		}
		// Nothing matched at all: the index (or the filtered slice of it) is
		// empty, and neither rewriting nor widening can change that.
		if len(passages) == 0 {
			break
		}
		avg := averageScore(passages)
		if avg > bestAvg {
			best = passages
			bestAvg = avg
		}
		if avg >= e.cfg.RescoreThreshold {
			break
		}
		if round == maxRounds {
			break
		}
		if round == 1 {
			if rewritten := e.rewriteQuery(ctx, req.Question); rewritten != "" {
				e.log.Debug("rewrote query", zap.String("from", query), zap.String("to", rewritten))
				query = rewritten
				continue
			}
		}
		topK *= 2
		if topK > 100 {
			topK = 100
		}
	}

	if len(best) == 0 {
		return &models.AskResponse{
			Question:    req.Question,
			Answer:      NoAnswerText,
			Sources:     []*models.Passage{},
			Rounds:      rounds,
			StopReason:  "no_context",
			QueryTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	asmCtx := e.assembler.Assemble(best)
	genReq := buildAnswerRequest(req.Question, asmCtx, e.cfg.MaxTokens)

	var result *generate.Result
	err := pipeline.Retry(ctx, e.cfg.Retry, func(ctx context.Context) error {
		var genErr error
		result, genErr = e.generator.Generate(ctx, genReq)
		return genErr
	})
	if err != nil {
		return nil, pipeline.AtStage("generate", err)
	}

	resp := &models.AskResponse{
		Question:      req.Question,
		Answer:        result.Text,
		CitedChunkIDs: extractCitations(result.Text, asmCtx.Passages),
		Sources:       asmCtx.Passages,
		Rounds:        rounds,
		StopReason:    result.StopReason,
		QueryTimeMs:   time.Since(start).Milliseconds(),
	}
	e.log.Info("answered question",
		zap.Int("rounds", rounds),
		zap.Int("sources", len(resp.Sources)),
		zap.Int64("ms", resp.QueryTimeMs))
	return resp, nil
}

// rewriteQuery asks the generator for a better retrieval query. Failures are
// non-fatal; the caller falls back to widening top_k.
func (e *Engine) rewriteQuery(ctx context.Context, question string) string {
	result, err := e.generator.Generate(ctx, buildRewriteRequest(question))
	if err != nil {
		e.log.Debug("query rewrite failed", zap.Error(err))
		return ""
	}
	rewritten := strings.TrimSpace(result.Text)
	if rewritten == "" || rewritten == question {
		return ""
	}
	return strings.Trim(rewritten, `"`)
}

func averageScore(passages []*models.Passage) float64 {
	if len(passages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range passages {
		sum += p.Score
	}
	return sum / float64(len(passages))
}
