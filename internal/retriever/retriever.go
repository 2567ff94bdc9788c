// Package retriever embeds a question and returns the top-ranked passages
// from the vector store, merging adjacent chunks of the same document.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ domain.Retriever = (*Retriever)(nil)

// Defaults for retrieval parameters.
const (
	DefaultTopK       = 5
	DefaultOversample = 4
)

// Retriever oversamples the store search so that merging adjacent chunks
// can shrink the candidate set without starving the final result.
type Retriever struct {
	embedder   domain.Embedder
	store      domain.VectorStore
	oversample int
	logger     *slog.Logger
}

// New validates the oversampling factor and returns a Retriever. A zero
// factor selects the default.
func New(embedder domain.Embedder, store domain.VectorStore, oversample int) (*Retriever, error) {
	if oversample < 0 {
		return nil, fmt.Errorf("%w: oversample factor must not be negative, got %d", domain.ErrConfig, oversample)
	}
	if oversample == 0 {
		oversample = DefaultOversample
	}
	return &Retriever{
		embedder:   embedder,
		store:      store,
		oversample: oversample,
		logger:     slog.Default().With("component", "retriever"),
	}, nil
}

// Retrieve returns the topK best passages for the question. An empty index
// or fewer hits than topK are success states, never errors.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	if len(vectors) == 0 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: embedder returned no query vector", domain.ErrEmbedding)
	}

	hits, err := r.store.Search(ctx, vectors[0], topK*r.oversample)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	merged := mergeAdjacent(hits)
	ranked := vectorstore.Rank(merged, topK)
	r.logger.Debug("retrieved passages", "question_len", len(question), "candidates", len(hits), "merged", len(merged), "returned", len(ranked))
	return domain.RetrievalResult{Hits: ranked}, nil
}

// mergeAdjacent folds hits from the same document whose chunk indexes form
// a consecutive run into one hit: texts concatenate in document order, the
// run keeps its best score, and the merged entry is keyed by the run's
// first chunk index. The merge is deterministic.
func mergeAdjacent(hits []domain.Scored) []domain.Scored {
	if len(hits) <= 1 {
		return hits
	}
	byDoc := make(map[string][]domain.Scored)
	order := make([]string, 0)
	for _, h := range hits {
		id := h.Entry.DocumentID
		if _, seen := byDoc[id]; !seen {
			order = append(order, id)
		}
		byDoc[id] = append(byDoc[id], h)
	}

	out := make([]domain.Scored, 0, len(hits))
	for _, id := range order {
		group := byDoc[id]
		sort.Slice(group, func(i, j int) bool {
			return group[i].Entry.ChunkIndex < group[j].Entry.ChunkIndex
		})
		cur := group[0]
		next := cur.Entry.ChunkIndex + 1
		for _, h := range group[1:] {
			if h.Entry.ChunkIndex == next {
				cur.Entry.Text += "\n" + h.Entry.Text
				if h.Score > cur.Score {
					cur.Score = h.Score
				}
				next++
				continue
			}
			out = append(out, cur)
			cur = h
			next = h.Entry.ChunkIndex + 1
		}
		out = append(out, cur)
	}
	return out
}
