// Package pgvector provides a durable vector store on Postgres with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ domain.VectorStore = (*Store)(nil)

// Config contains the connection string and table name for the store.
type Config struct {
	DSN    string
	Table  string
	Metric vectorstore.Metric
}

// Store persists index entries in a chunk table keyed by
// (document id, chunk index), with a companion documents table holding the
// per-document content hash, so zero-chunk documents stay indexed. Document
// replacement runs in one transaction, so a concurrent search sees either
// the old or the new entry set.
type Store struct {
	pool     *pgxpool.Pool
	table    string
	docTable string
	metric   vectorstore.Metric
}

// New connects a pool and returns a Store; Init must be called before use.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrConfig)
	}
	table := cfg.Table
	if table == "" {
		table = "doc_chunks"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrConfig, table)
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", domain.ErrIndexUnavailable, err)
	}
	return &Store{pool: pool, table: table, docTable: table + "_docs", metric: metric}, nil
}

// Init creates the extension and the table with the given vector dimension.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrConfig, dimension)
	}
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %s (
    document_id  TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    PRIMARY KEY (document_id)
);
CREATE TABLE IF NOT EXISTS %s (
    document_id  TEXT        NOT NULL,
    chunk_index  INT         NOT NULL,
    text         TEXT        NOT NULL,
    title        TEXT        NOT NULL DEFAULT '',
    url          TEXT        NOT NULL DEFAULT '',
    content_hash TEXT        NOT NULL,
    fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    embedding    vector(%d)  NOT NULL,
    PRIMARY KEY (document_id, chunk_index)
)`, s.docTable, s.table, dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: init schema: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// ReplaceDocument deletes and re-inserts the document's rows in one
// transaction. The documents row records the content hash even when the
// document produced no chunks.
func (s *Store) ReplaceDocument(ctx context.Context, documentID, contentHash string, entries []domain.IndexEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin replace tx: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (document_id, content_hash) VALUES ($1, $2)
ON CONFLICT (document_id) DO UPDATE SET content_hash = EXCLUDED.content_hash`, s.docTable),
		documentID, contentHash); err != nil {
		return fmt.Errorf("%w: record document hash: %v", domain.ErrIndexUnavailable, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table), documentID); err != nil {
		return fmt.Errorf("%w: delete old entries: %v", domain.ErrIndexUnavailable, err)
	}
	for _, e := range entries {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (document_id, chunk_index, text, title, url, content_hash, fetched_at, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)`, s.table),
			e.DocumentID, e.ChunkIndex, e.Text, e.Source.Title, e.Source.URL,
			contentHash, e.Source.FetchedAt, vectorLiteral(e.Vector))
		if err != nil {
			return fmt.Errorf("%w: insert entry %s/%d: %v", domain.ErrIndexUnavailable, e.DocumentID, e.ChunkIndex, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit replace tx: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// DeleteDocument removes all rows of the document, its hash row included;
// no-op if absent.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin delete tx: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table), documentID); err != nil {
		return fmt.Errorf("%w: delete document chunks: %v", domain.ErrIndexUnavailable, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.docTable), documentID); err != nil {
		return fmt.Errorf("%w: delete document hash: %v", domain.ErrIndexUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit delete tx: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// DocumentHash reads the content hash recorded for the document.
func (s *Store) DocumentHash(ctx context.Context, documentID string) (string, bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT content_hash FROM %s WHERE document_id = $1`, s.docTable),
		documentID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read document hash: %v", domain.ErrIndexUnavailable, err)
	}
	return hash, true, nil
}

// Search ranks rows by the configured metric. Ordering includes the entry
// key so equal distances come back deterministically.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.Scored, error) {
	if topK <= 0 {
		return nil, nil
	}
	scoreExpr := `1 - (embedding <=> $1::vector)`
	orderExpr := `embedding <=> $1::vector`
	if s.metric == vectorstore.MetricDot {
		scoreExpr = `-(embedding <#> $1::vector)`
		orderExpr = `embedding <#> $1::vector`
	}
	query := fmt.Sprintf(`
SELECT document_id, chunk_index, text, title, url, content_hash, fetched_at, %s AS score
FROM %s
ORDER BY %s ASC, document_id ASC, chunk_index ASC
LIMIT $2`, scoreExpr, s.table, orderExpr)

	rows, err := s.pool.Query(ctx, query, vectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]domain.Scored, 0, topK)
	for rows.Next() {
		var e domain.IndexEntry
		var fetchedAt time.Time
		var score float64
		if err := rows.Scan(&e.DocumentID, &e.ChunkIndex, &e.Text, &e.Source.Title, &e.Source.URL, &e.Source.ContentHash, &fetchedAt, &score); err != nil {
			return nil, fmt.Errorf("%w: scan search row: %v", domain.ErrIndexUnavailable, err)
		}
		e.Source.FetchedAt = fetchedAt
		hits = append(hits, domain.Scored{Entry: e, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate search rows: %v", domain.ErrIndexUnavailable, err)
	}
	return hits, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}
