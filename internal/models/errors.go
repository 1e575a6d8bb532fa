package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned when a query is empty or whitespace-only. It is a caller-side
// validation failure; the pipeline is never invoked.
var ErrEmptyQuery = errors.New("query cannot be empty")

// LoadError reports a corpus file that is missing, unreadable, or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load corpus %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// EmbeddingMismatchError reports drift between the embedding model an index was built
// with and the one used to query it.
type EmbeddingMismatchError struct {
	Field      string // "model" or "dimensions"
	Index      string
	Configured string
}

func (e *EmbeddingMismatchError) Error() string {
	return fmt.Sprintf("embedding %s mismatch: index has %s, configured %s", e.Field, e.Index, e.Configured)
}

// EmbeddingServiceError reports that the embedding service failed and the retry budget
// (if any) was spent.
type EmbeddingServiceError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service (%s) failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// GenerationError reports a failed language-model call: timeout, quota, transport
// failure after retries, or a malformed response.
type GenerationError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s) failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FailureKind is a stable, user-facing classification of a pipeline error.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureEmptyQuery        FailureKind = "empty_query"
	FailureLoad              FailureKind = "corpus_load"
	FailureEmbeddingMismatch FailureKind = "embedding_mismatch"
	FailureEmbeddingService  FailureKind = "embedding_service"
	FailureGeneration        FailureKind = "generation"
	FailureTimeout           FailureKind = "timeout"
	FailureInternal          FailureKind = "internal"
)

// Classify maps err to a FailureKind. Typed errors win over a wrapped deadline so that
// an exhausted retry budget is reported against the service that failed.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var (
		loadErr     *LoadError
		mismatchErr *EmbeddingMismatchError
		embedErr    *EmbeddingServiceError
		genErr      *GenerationError
	)
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return FailureEmptyQuery
	case errors.As(err, &mismatchErr):
		return FailureEmbeddingMismatch
	case errors.As(err, &embedErr):
		return FailureEmbeddingService
	case errors.As(err, &genErr):
		return FailureGeneration
	case errors.As(err, &loadErr):
		return FailureLoad
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureInternal
	}
}
