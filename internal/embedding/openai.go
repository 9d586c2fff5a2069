package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/pipeline"
	"golang.org/x/time/rate"
)

// OversizePolicy controls what happens to input longer than the service limit.
type OversizePolicy string

const (
	// OversizeTruncate silently cuts the input at the limit.
	OversizeTruncate OversizePolicy = "truncate"
	// OversizeReject fails the call with an input error.
	OversizeReject OversizePolicy = "reject"
)

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	Endpoint          string // base URL, e.g. https://api.openai.com/v1
	APIKey            string
	Model             string
	Dimensions        int
	MaxInputChars     int
	Policy            OversizePolicy
	RequestsPerSecond float64
	Timeout           time.Duration // per-request default when the caller sets no deadline
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	cfg     OpenAIConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewOpenAIEmbedder creates the client. The limiter bounds outbound request
// rate so ingestion fan-out cannot exceed the service's rate limits.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = OversizeTruncate
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &OpenAIEmbedder{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		p, err := e.prepare(t)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": e.cfg.Model,
		"input": prepared,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, pipeline.Transientf("embeddings request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Transientf("read embeddings response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(respBody))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, pipeline.Transientf("embeddings service returned %d: %s", resp.StatusCode, snippet)
		}
		return nil, pipeline.Inputf("embeddings service rejected request (%d): %s", resp.StatusCode, snippet)
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, pipeline.Configf("embedding dimension mismatch: service returned %d, configured %d",
				len(d.Embedding), e.cfg.Dimensions)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings response missing vector for input %d", i)
		}
	}
	return out, nil
}

// prepare applies the oversize policy and rejects empty input.
func (e *OpenAIEmbedder) prepare(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", pipeline.Inputf("cannot embed empty text")
	}
	if e.cfg.MaxInputChars > 0 && len(text) > e.cfg.MaxInputChars {
		switch e.cfg.Policy {
		case OversizeReject:
			return "", pipeline.Inputf("text length %d exceeds embedding input limit %d", len(text), e.cfg.MaxInputChars)
		default:
			cut := e.cfg.MaxInputChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			return text[:cut], nil
		}
	}
	return text, nil
}

// Ping embeds a probe string to verify connectivity and dimensionality.
// A dimension mismatch here means the index would be poisoned on first write,
// so it is reported as a configuration error.
func (e *OpenAIEmbedder) Ping(ctx context.Context) error {
	vec, err := e.Embed(ctx, "ping")
	if err != nil {
		return fmt.Errorf("embedding service ping: %w", err)
	}
	if len(vec) != e.cfg.Dimensions {
		return pipeline.Configf("embedding dimension mismatch: service returned %d, configured %d",
			len(vec), e.cfg.Dimensions)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no long-lived resources.
func (e *OpenAIEmbedder) Close() error { return nil }
