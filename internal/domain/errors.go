package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Adapters wrap their underlying
// cause with %w around one of these so callers can classify with errors.Is.
var (
	// ErrConfig indicates invalid construction parameters; fails fast.
	ErrConfig = errors.New("invalid configuration")

	// ErrEmbedding indicates the embedding provider failed after bounded
	// retries, or returned vectors of unexpected dimensionality.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates the generation model call failed after
	// bounded retries.
	ErrGeneration = errors.New("generation failed")

	// ErrIndexUnavailable indicates the vector store backend cannot be
	// reached. Never swallowed.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// IngestError wraps a failure during ingestion with the affected document id,
// so a batch report can name which document failed and why.
type IngestError struct {
	DocumentID string
	Err        error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest document %s: %v", e.DocumentID, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
