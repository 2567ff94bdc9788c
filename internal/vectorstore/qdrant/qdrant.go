// Package qdrant provides a vector store backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ domain.VectorStore = (*Store)(nil)

// Config contains connection details for a Qdrant collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Metric     vectorstore.Metric
	Timeout    time.Duration
}

// Store talks to one Qdrant collection. Point ids are deterministic UUIDv5
// values derived from (document id, chunk index), so re-upserting a chunk
// overwrites its previous point instead of accumulating duplicates.
type Store struct {
	url        string
	apiKey     string
	collection string
	metric     vectorstore.Metric
	client     *http.Client

	// Serializes document replacements so two writers cannot interleave
	// their upsert/delete-stale phases for the same collection.
	writeMu sync.Mutex

	dimension int
}

// New creates a Store; Init must be called before use.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant url and collection are required", domain.ErrConfig)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		metric:     metric,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Init creates the collection if missing, with the store's metric and the
// given dimension.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrConfig, dimension)
	}
	s.writeMu.Lock()
	s.dimension = dimension
	s.writeMu.Unlock()
	distance := "Cosine"
	if s.metric == vectorstore.MetricDot {
		distance = "Dot"
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	// Qdrant responds 200 when the collection already exists with the same
	// schema, and 409 otherwise; both surface here.
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

// ReplaceDocument upserts the new points first and then deletes stale
// points whose chunk index is past the new count. Searches in between see
// old or new chunks for the document, never a shorter mix. Every document
// also carries a marker point at chunk index -1 whose payload holds the
// content hash, so zero-chunk documents stay indexed and skip on re-ingest.
func (s *Store) ReplaceDocument(ctx context.Context, documentID, contentHash string, entries []domain.IndexEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.dimension <= 0 {
		return fmt.Errorf("%w: store not initialized", domain.ErrConfig)
	}
	points := make([]map[string]any, 0, len(entries)+1)
	points = append(points, map[string]any{
		"id":     pointID(documentID, markerChunkIndex),
		"vector": make([]float32, s.dimension),
		"payload": map[string]any{
			"document_id":  documentID,
			"chunk_index":  markerChunkIndex,
			"content_hash": contentHash,
		},
	})
	for _, e := range entries {
		points = append(points, map[string]any{
			"id":     pointID(documentID, e.ChunkIndex),
			"vector": e.Vector,
			"payload": map[string]any{
				"document_id":  e.DocumentID,
				"chunk_index":  e.ChunkIndex,
				"text":         e.Text,
				"title":        e.Source.Title,
				"url":          e.Source.URL,
				"content_hash": contentHash,
				"fetched_at":   e.Source.FetchedAt.UTC().Format(time.RFC3339),
			},
		})
	}
	body := map[string]any{"points": points}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil); err != nil {
		return err
	}
	return s.deleteByFilter(ctx, documentFilter(documentID, len(entries)))
}

// DeleteDocument removes all points of the document, marker included;
// no-op if absent.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.deleteByFilter(ctx, documentFilter(documentID, markerChunkIndex))
}

// DocumentHash scrolls one point of the document and reads its payload.
func (s *Store) DocumentHash(ctx context.Context, documentID string) (string, bool, error) {
	req := map[string]any{
		"filter":       documentFilter(documentID, markerChunkIndex),
		"limit":        1,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp); err != nil {
		return "", false, err
	}
	if len(resp.Result.Points) == 0 {
		return "", false, nil
	}
	hash, _ := resp.Result.Points[0].Payload["content_hash"].(string)
	return hash, true, nil
}

// Search queries the collection and re-ranks locally for deterministic
// tie-breaking.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.Scored, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		// Marker points carry document metadata, not content.
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "chunk_index", "range": map[string]any{"gte": 0}},
			},
		},
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.Scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.Scored{Entry: entryFromPayload(r.Payload), Score: r.Score})
	}
	return vectorstore.Rank(hits, topK), nil
}

// markerChunkIndex is the chunk index reserved for the per-document marker
// point. Real chunks always index from zero.
const markerChunkIndex = -1

// documentFilter matches the document's points with chunk index at or past
// minChunkIndex; markerChunkIndex matches the whole document including its
// marker point.
func documentFilter(documentID string, minChunkIndex int) map[string]any {
	must := []map[string]any{
		{"key": "document_id", "match": map[string]any{"value": documentID}},
	}
	if minChunkIndex > markerChunkIndex {
		must = append(must, map[string]any{
			"key":   "chunk_index",
			"range": map[string]any{"gte": minChunkIndex},
		})
	}
	return map[string]any{"must": must}
}

func (s *Store) deleteByFilter(ctx context.Context, filter map[string]any) error {
	body := map[string]any{"filter": filter}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

func entryFromPayload(payload map[string]any) domain.IndexEntry {
	e := domain.IndexEntry{}
	if v, ok := payload["document_id"].(string); ok {
		e.DocumentID = v
	}
	if v, ok := payload["chunk_index"].(float64); ok {
		e.ChunkIndex = int(v)
	}
	if v, ok := payload["text"].(string); ok {
		e.Text = v
	}
	if v, ok := payload["title"].(string); ok {
		e.Source.Title = v
	}
	if v, ok := payload["url"].(string); ok {
		e.Source.URL = v
	}
	if v, ok := payload["content_hash"].(string); ok {
		e.Source.ContentHash = v
	}
	if v, ok := payload["fetched_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			e.Source.FetchedAt = t
		}
	}
	return e
}

// pointID derives a stable UUID from the entry key, since Qdrant only
// accepts UUIDs or unsigned integers as point ids.
func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(chunkIndex))).String()
}

func (s *Store) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrIndexUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrIndexUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrIndexUnavailable, method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %s", domain.ErrIndexUnavailable, method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrIndexUnavailable, err)
		}
	}
	return nil
}
