// Package memory provides an in-memory vector store using brute-force
// similarity search. Documents are replaced and deleted under a single
// write lock, so a concurrent search sees either all of a document's
// entries or none of them.
package memory

import (
	"context"
	"fmt"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ domain.VectorStore = (*Store)(nil)

type docRecord struct {
	hash    string
	entries []domain.IndexEntry
}

// Store keeps all entries in process memory. It satisfies the full store
// contract and doubles as the reference implementation for tests.
type Store struct {
	metric vectorstore.Metric

	mu        sync.RWMutex
	dimension int
	docs      map[string]docRecord
}

// New creates an empty store with the given similarity metric.
func New(metric vectorstore.Metric) *Store {
	return &Store{metric: metric, docs: make(map[string]docRecord)}
}

// Init fixes the vector dimension. Re-initializing with a different
// dimension drops all entries.
func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.docs = make(map[string]docRecord)
	}
	s.dimension = dimension
	return nil
}

// ReplaceDocument swaps all entries of one document in a single critical
// section. Zero entries still records the content hash, so a document whose
// text chunks to nothing stays indexed and skips on re-ingest.
func (s *Store) ReplaceDocument(_ context.Context, documentID, contentHash string, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return fmt.Errorf("%w: store not initialized", domain.ErrConfig)
	}
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.DocumentID != documentID {
			return fmt.Errorf("%w: entry belongs to document %s, not %s", domain.ErrConfig, e.DocumentID, documentID)
		}
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: vector dimension %d, store expects %d", domain.ErrConfig, len(e.Vector), s.dimension)
		}
		if _, dup := seen[e.ChunkIndex]; dup {
			return fmt.Errorf("%w: duplicate chunk index %d for document %s", domain.ErrConfig, e.ChunkIndex, documentID)
		}
		seen[e.ChunkIndex] = struct{}{}
	}
	if len(entries) == 0 {
		s.docs[documentID] = docRecord{hash: contentHash}
		return nil
	}
	copied := make([]domain.IndexEntry, len(entries))
	copy(copied, entries)
	s.docs[documentID] = docRecord{hash: contentHash, entries: copied}
	return nil
}

// DeleteDocument removes all entries for the document; no-op if absent.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	return nil
}

// DocumentHash reports the content hash recorded for the document.
func (s *Store) DocumentHash(_ context.Context, documentID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[documentID]
	return rec.hash, ok, nil
}

// Search scores every entry against the query vector and returns the topK
// best, descending, with deterministic tie-breaks.
func (s *Store) Search(_ context.Context, vector []float32, topK int) ([]domain.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		return nil, nil
	}
	var hits []domain.Scored
	for _, rec := range s.docs {
		for _, e := range rec.entries {
			hits = append(hits, domain.Scored{
				Entry: e,
				Score: vectorstore.Similarity(s.metric, e.Vector, vector),
			})
		}
	}
	return vectorstore.Rank(hits, topK), nil
}

// EntryCount reports the total number of entries, for tests and status lines.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.docs {
		n += len(rec.entries)
	}
	return n
}

// DocumentEntryCount reports the number of entries for one document.
func (s *Store) DocumentEntryCount(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[documentID].entries)
}
