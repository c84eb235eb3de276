// Package memory implements the orchestration layer of the retrieval core:
// the long-term hybrid store, the short-term conversational buffer, the
// semantic chunker, the external fetch cache, and the memory manager that
// wires all four together behind one public API.
package memory

import "fmt"

// Kind classifies a MemoryError for callers that need to branch on failure
// mode without string-matching an error message.
type Kind string

// Recognized error kinds forming this package's error surface.
const (
	KindInvalidInput          Kind = "invalid_input"
	KindEmbeddingFailure      Kind = "embedding_failure"
	KindIndexFailure          Kind = "index_failure"
	KindTimeout               Kind = "timeout"
	KindNetworkError          Kind = "network_error"
	KindSummarizerUnavailable Kind = "summarizer_unavailable"
)

// MemoryError is the single exported error type at this package's API
// boundary: a machine-readable Kind plus the wrapped cause.
type MemoryError struct {
	Kind Kind
	Err  error
}

func (e *MemoryError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *MemoryError) Unwrap() error { return e.Err }

// newError wraps err with kind, or returns nil if err is nil.
func newError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{Kind: kind, Err: err}
}

func newErrorf(kind Kind, format string, args ...any) error {
	return &MemoryError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
