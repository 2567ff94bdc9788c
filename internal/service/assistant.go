// Package service wires the chunker, embedder, vector store, retriever and
// synthesizer into the two pipelines of the application core: document
// ingestion and question answering.
package service

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"docqa/internal/domain"
)

var _ domain.Assistant = (*Assistant)(nil)

// Assistant is the application core. It is safe for concurrent use by
// multiple callers: per-document ingestion is single-flight, and all shared
// mutation funnels through the vector store.
type Assistant struct {
	chunker     domain.Chunker
	embedder    domain.Embedder
	store       domain.VectorStore
	retriever   domain.Retriever
	synthesizer domain.Synthesizer
	logger      *slog.Logger

	flight *keyedMutex

	initMu  sync.Mutex
	initDim int
}

// New assembles an Assistant from its components.
func New(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, retriever domain.Retriever, synthesizer domain.Synthesizer) *Assistant {
	return &Assistant{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      slog.Default().With("component", "assistant"),
		flight:      newKeyedMutex(),
	}
}

// Ingest indexes one document. Unchanged content (same hash) is skipped
// without re-chunking or re-embedding; changed content atomically replaces
// all previous entries for the document.
func (a *Assistant) Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error) {
	doc, err := normalize(doc)
	if err != nil {
		return domain.IngestResult{}, &domain.IngestError{DocumentID: doc.ID, Err: err}
	}

	unlock := a.flight.lock(doc.ID)
	defer unlock()

	fail := func(err error) (domain.IngestResult, error) {
		return domain.IngestResult{DocumentID: doc.ID}, &domain.IngestError{DocumentID: doc.ID, Err: err}
	}

	if a.embedder.Dimension() > 0 {
		if err := a.ensureInit(ctx); err != nil {
			return fail(err)
		}
	}

	hash := hashText(doc.Text)
	stored, exists, hashErr := a.store.DocumentHash(ctx, doc.ID)
	if hashErr != nil {
		// Before the first embed a remote embedder has no dimension yet and
		// the store schema may not exist; defer the failure to the write,
		// which reports it properly.
		if a.embedder.Dimension() > 0 {
			return fail(hashErr)
		}
		exists = false
	}
	if exists && stored == hash {
		a.logger.Debug("document unchanged, skipping", "document_id", doc.ID)
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestSkipped}, nil
	}

	chunks, err := a.chunker.Chunk(doc)
	if err != nil {
		return fail(err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return fail(err)
	}
	if len(vectors) != len(chunks) {
		return fail(fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks)))
	}
	if len(chunks) == 0 && a.embedder.Dimension() <= 0 {
		// Nothing was embedded, so a remote embedder still has no dimension
		// and the store cannot be initialized to record the hash. Report
		// success; the hash is recorded once the store becomes reachable.
		a.logger.Info("document indexed", "document_id", doc.ID, "status", string(domain.IngestAdded), "chunks", 0)
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestAdded}, nil
	}
	if err := a.ensureInit(ctx); err != nil {
		return fail(err)
	}

	source := domain.Source{Title: doc.Title, URL: doc.URL, ContentHash: hash, FetchedAt: doc.FetchedAt}
	entries := make([]domain.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = domain.IndexEntry{
			DocumentID: doc.ID,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Vector:     vectors[i],
			Source:     source,
		}
	}
	if err := a.store.ReplaceDocument(ctx, doc.ID, hash, entries); err != nil {
		return fail(err)
	}

	status := domain.IngestAdded
	if exists {
		status = domain.IngestUpdated
	}
	a.logger.Info("document indexed", "document_id", doc.ID, "status", string(status), "chunks", len(entries))
	return domain.IngestResult{DocumentID: doc.ID, Status: status, ChunkCount: len(entries)}, nil
}

// IngestAll ingests a batch, reporting per-document outcomes so the batch
// can partially succeed.
func (a *Assistant) IngestAll(ctx context.Context, docs []domain.Document) []domain.IngestOutcome {
	outcomes := make([]domain.IngestOutcome, len(docs))
	for i, doc := range docs {
		res, err := a.Ingest(ctx, doc)
		outcomes[i] = domain.IngestOutcome{Result: res, Err: err}
	}
	return outcomes
}

// Remove deletes all index entries of the document. Idempotent.
func (a *Assistant) Remove(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrConfig)
	}
	unlock := a.flight.lock(documentID)
	defer unlock()
	return a.store.DeleteDocument(ctx, documentID)
}

// Ask answers a question from the indexed corpus. Retrieval and synthesis
// failures propagate; the core never fabricates an answer.
func (a *Assistant) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, fmt.Errorf("%w: question must not be empty", domain.ErrConfig)
	}
	result, err := a.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	return a.synthesizer.Synthesize(ctx, question, result)
}

// ensureInit initializes the store once per observed embedder dimension.
func (a *Assistant) ensureInit(ctx context.Context) error {
	dim := a.embedder.Dimension()
	if dim <= 0 {
		return fmt.Errorf("%w: embedder reports no dimension", domain.ErrEmbedding)
	}
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.initDim == dim {
		return nil
	}
	if a.initDim != 0 && a.initDim != dim {
		return fmt.Errorf("%w: embedder dimension changed from %d to %d", domain.ErrConfig, a.initDim, dim)
	}
	if err := a.store.Init(ctx, dim); err != nil {
		return err
	}
	a.initDim = dim
	return nil
}

// normalize fills derived fields and rejects malformed documents before any
// core logic runs.
func normalize(doc domain.Document) (domain.Document, error) {
	doc.Text = strings.ToValidUTF8(doc.Text, "")
	if doc.ID == "" {
		if doc.URL == "" {
			return doc, fmt.Errorf("%w: document needs an id or a url", domain.ErrConfig)
		}
		doc.ID = DeriveID(doc.URL)
	}
	if doc.Title == "" {
		if doc.URL != "" {
			doc.Title = doc.URL
		} else {
			doc.Title = doc.ID
		}
	}
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = time.Now().UTC()
	}
	return doc, nil
}

// DeriveID produces the stable document id for a source URL or path.
func DeriveID(url string) string {
	h := sha1.Sum([]byte(url))
	return hex.EncodeToString(h[:8])
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
