package domain

import "time"

// Document is a single documentation page handed to the ingestion pipeline.
// The core never fetches documents; it only accepts them in this shape.
type Document struct {
	ID        string
	Text      string
	Title     string
	URL       string
	FetchedAt time.Time
}

// Chunk is a bounded segment of one document, the unit of embedding and
// retrieval. Start and End are rune offsets into the parent text, so
// Text always equals the parent slice [Start:End).
type Chunk struct {
	DocumentID string
	Index      int
	Start      int
	End        int
	Text       string
}

// Source is the citation metadata carried by every index entry. It is
// self-describing so answers stay meaningful even after the parent
// document has been removed.
type Source struct {
	Title       string
	URL         string
	ContentHash string
	FetchedAt   time.Time
}

// IndexEntry is what the vector store persists: a chunk's vector plus an
// identifying key and its source metadata. The (DocumentID, ChunkIndex)
// pair is unique within a store.
type IndexEntry struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Vector     []float32
	Source     Source
}

// Scored is a single search hit.
type Scored struct {
	Entry IndexEntry
	Score float64
}

// RetrievalResult is an ordered sequence of retrieved passages, descending
// by score, ties broken by (document id, chunk index).
type RetrievalResult struct {
	Hits []Scored
}

// Answer is the synthesized response to one question.
type Answer struct {
	Text       string
	Sources    []Source
	ChunksUsed int
}

// IngestStatus reports what an ingestion did for one document.
type IngestStatus string

const (
	IngestAdded   IngestStatus = "added"
	IngestUpdated IngestStatus = "updated"
	IngestSkipped IngestStatus = "skipped"
)

// IngestResult is the per-document outcome of an ingestion.
type IngestResult struct {
	DocumentID string
	Status     IngestStatus
	ChunkCount int
}
