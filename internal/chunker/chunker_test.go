package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNewValidatesParameters(t *testing.T) {
	cases := []struct {
		name     string
		maxChars int
		overlap  int
		wantErr  bool
	}{
		{"valid", 1000, 200, false},
		{"zero overlap", 100, 0, false},
		{"zero max", 0, 0, true},
		{"negative max", -5, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals max", 100, 100, true},
		{"overlap exceeds max", 100, 150, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.maxChars, tc.overlap)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	for _, text := range []string{"", "   \n\t  "} {
		chunks, err := c.Chunk(domain.Document{ID: "d", Text: text})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkShortDocumentSingleChunk(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	doc := domain.Document{ID: "install", Text: "Run uv install to set up the project."}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(doc.Text)), chunks[0].End)
}

func TestChunkReconstructsOriginalText(t *testing.T) {
	c, err := New(80, 16)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30) +
		"\n\nSecond paragraph with more detail about configuration.\n\n" +
		strings.Repeat("Short sentence here. ", 20)
	doc := domain.Document{ID: "d1", Text: text}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	runes := []rune(text)
	prevEnd := 0
	var rebuilt strings.Builder
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.NotEmpty(t, ch.Text)
		assert.LessOrEqual(t, ch.End-ch.Start, 80, "chunk %d exceeds max size", i)
		assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text, "chunk %d is not a span of the original", i)
		if i == 0 {
			assert.Equal(t, 0, ch.Start)
		} else {
			assert.LessOrEqual(t, ch.Start, prevEnd, "gap before chunk %d", i)
		}
		rebuilt.WriteString(string(runes[max(ch.Start, prevEnd):ch.End]))
		prevEnd = ch.End
	}
	assert.Equal(t, len(runes), chunks[len(chunks)-1].End)
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkHardCutWithoutBoundaries(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{ID: "d", Text: strings.Repeat("x", 35)})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 10)
	}
	assert.Equal(t, 35, chunks[len(chunks)-1].End)
}

func TestChunkPrefersParagraphBoundary(t *testing.T) {
	c, err := New(60, 10)
	require.NoError(t, err)

	text := "First paragraph stays together here.\n\nSecond paragraph follows with enough text to overflow the window size."
	chunks, err := c.Chunk(domain.Document{ID: "d", Text: text})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"), "first chunk should end at the paragraph break, got %q", chunks[0].Text)
}
