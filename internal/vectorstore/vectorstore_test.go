package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("dot")
	require.NoError(t, err)
	assert.Equal(t, MetricDot, m)

	_, err = ParseMetric("euclidean")
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 1.0, Similarity(MetricCosine, a, a), 1e-9)
	assert.InDelta(t, 0.0, Similarity(MetricCosine, a, b), 1e-9)
	assert.InDelta(t, 1.0, Similarity(MetricCosine, a, c), 1e-9, "cosine ignores magnitude")
	assert.InDelta(t, 2.0, Similarity(MetricDot, a, c), 1e-9)
	assert.InDelta(t, 0.0, Similarity(MetricCosine, []float32{0, 0}, a), 1e-9, "zero vector scores zero")
}

func TestRankDeterministicTieBreak(t *testing.T) {
	hit := func(doc string, idx int, score float64) domain.Scored {
		return domain.Scored{Entry: domain.IndexEntry{DocumentID: doc, ChunkIndex: idx}, Score: score}
	}
	hits := []domain.Scored{
		hit("b", 0, 0.5),
		hit("a", 2, 0.5),
		hit("a", 1, 0.5),
		hit("c", 0, 0.9),
	}
	ranked := Rank(hits, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Entry.DocumentID)
	assert.Equal(t, "a", ranked[1].Entry.DocumentID)
	assert.Equal(t, 1, ranked[1].Entry.ChunkIndex)
	assert.Equal(t, "a", ranked[2].Entry.DocumentID)
	assert.Equal(t, 2, ranked[2].Entry.ChunkIndex)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}
