// Package pipeline defines the shared error taxonomy and retry policy
// used by the ingestion and question-answering pipelines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// InputError marks malformed caller input (empty document, invalid top_k,
// dimension mismatch on a request). Never retried.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Inputf returns an InputError with a formatted message.
func Inputf(format string, args ...interface{}) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError marks a failure that is expected to succeed on retry:
// timeouts, rate limits, and 5xx-equivalent responses from external services.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transientf returns a TransientError wrapping a formatted error.
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// ConfigError marks invalid or inconsistent configuration (missing required
// setting, embedding dimension mismatch at startup). Fatal; the process must
// not serve traffic.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf returns a ConfigError with a formatted message.
func Configf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// StageError identifies which pipeline stage failed after retries were
// exhausted, so callers can report "embedding failed" rather than a bare cause.
type StageError struct {
	Stage string // "extract", "chunk", "embed", "index", "retrieve", "generate"
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with the failing stage name. Returns nil when err is nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// PartialIngestError reports an ingestion batch in which some chunks were
// embedded and indexed while others failed. Failed chunk ids can be retried
// alone; upsert idempotence makes the retry safe.
type PartialIngestError struct {
	DocumentID string
	Succeeded  []string
	Failed     []string
	Err        error // first underlying failure
}

func (e *PartialIngestError) Error() string {
	return fmt.Sprintf("partial ingest of %s: %d chunks indexed, %d failed (first error: %v)",
		e.DocumentID, len(e.Succeeded), len(e.Failed), e.Err)
}

func (e *PartialIngestError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried. Context cancellation is
// never transient (the caller gave up); deadline expiry on a single attempt is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection-level failures from HTTP/gRPC clients surface as plain errors.
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "unavailable", "EOF"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
