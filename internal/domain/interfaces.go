package domain

import "context"

// Chunker splits documents into overlapping chunks suitable for embedding.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts text into fixed-length numeric vectors. Implementations
// must return one vector per input, in input order, all of Dimension() size.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists index entries and supports nearest-neighbor search.
// The similarity metric is fixed per store instance at construction.
type VectorStore interface {
	// Init fixes the vector dimension and prepares backing storage.
	Init(ctx context.Context, dimension int) error
	// ReplaceDocument atomically swaps all entries for one document:
	// a concurrent Search sees either the old set or the new set, never a
	// mix. Zero entries still records the content hash, so the document
	// stays indexed and unchanged re-ingests skip.
	ReplaceDocument(ctx context.Context, documentID, contentHash string, entries []IndexEntry) error
	// DeleteDocument removes all entries for the document; no-op if absent.
	DeleteDocument(ctx context.Context, documentID string) error
	// DocumentHash returns the content hash recorded by the last
	// ReplaceDocument for the document, and whether the document is indexed.
	DocumentHash(ctx context.Context, documentID string) (string, bool, error)
	// Search returns at most topK entries by descending similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]Scored, error)
}

// Generator is the narrow contract to the external language model: one
// prompt in, one completion out.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Retriever embeds a question and returns the top-ranked passages.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) (RetrievalResult, error)
}

// Synthesizer turns a question plus retrieved passages into a sourced answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, result RetrievalResult) (Answer, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Assistant is the application core exposed to presentation layers.
type Assistant interface {
	Ingest(ctx context.Context, doc Document) (IngestResult, error)
	IngestAll(ctx context.Context, docs []Document) []IngestOutcome
	Remove(ctx context.Context, documentID string) error
	Ask(ctx context.Context, question string, topK int) (Answer, error)
}

// IngestOutcome pairs a per-document ingest result with its error, so a
// batch of documents can partially succeed.
type IngestOutcome struct {
	Result IngestResult
	Err    error
}
