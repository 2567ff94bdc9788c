package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"docqa/internal/domain"
)

// Default chunking parameters, in runes.
const (
	DefaultMaxChars = 1000
	DefaultOverlap  = 200
)

// Chunker splits a document into overlapping spans of at most maxChars
// runes, preferring paragraph and sentence boundaries over hard cuts.
// Chunks are pure spans of the original text: Text == parent[Start:End),
// so concatenating spans minus overlap reconstructs the document exactly.
type Chunker struct {
	maxChars int
	overlap  int
}

// New validates the chunking parameters and returns a Chunker.
func New(maxChars, overlap int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", domain.ErrConfig, maxChars)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrConfig, maxChars, overlap)
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// Chunk splits the document into ordered, overlapping chunks. A document
// whose text is empty or whitespace-only produces no chunks.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	runes := []rune(doc.Text)
	n := len(runes)

	var chunks []domain.Chunk
	start := 0
	idx := 0
	for start < n {
		end := start + c.maxChars
		if end >= n {
			end = n
		} else {
			end = c.cutPoint(runes, start, end)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Index:      idx,
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})
		if end == n {
			break
		}
		idx++
		next := end - c.overlap
		if next <= start {
			// Always make progress even when overlap swallows the whole span.
			next = start + 1
		}
		start = next
	}
	return chunks, nil
}

// cutPoint picks where to end a chunk that starts at start and may extend to
// limit (exclusive, limit < len(runes)). It prefers, in order: the end of a
// paragraph, the end of a sentence, any whitespace, and finally a hard cut
// at the window limit. Boundary cuts are only taken past a minimum fill so a
// break near the window start cannot degenerate into tiny chunks.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	minCut := start + c.maxChars/4
	if minCut <= start {
		minCut = start + 1
	}

	for i := limit; i > minCut; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > minCut; i-- {
		if isSentenceEnd(runes[i-2]) && unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	for i := limit; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
