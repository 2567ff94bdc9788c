package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToDefaultDimension(t *testing.T) {
	assert.Equal(t, DefaultDimension, New(0).Dimension())
	assert.Equal(t, DefaultDimension, New(-3).Dimension())
	assert.Equal(t, 64, New(64).Dimension())
}

func TestEmbedIsDeterministic(t *testing.T) {
	e := New(128)
	a, err := e.Embed(context.Background(), []string{"install the tool"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"install the tool"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedReturnsUnitVectors(t *testing.T) {
	e := New(128)
	vectors, err := e.Embed(context.Background(), []string{
		"a short sentence",
		"a much longer sentence with many more words repeated words repeated words",
	})
	require.NoError(t, err)
	for _, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestEmbedIgnoresCaseAndPunctuation(t *testing.T) {
	e := New(128)
	vectors, err := e.Embed(context.Background(), []string{"Install, The Tool!", "install the tool"})
	require.NoError(t, err)
	assert.Equal(t, vectors[0], vectors[1])
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	e := New(32)
	vectors, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	for _, x := range vectors[0] {
		assert.Zero(t, x)
	}
}

func TestSimilarTextsScoreHigherThanUnrelated(t *testing.T) {
	e := New(256)
	vectors, err := e.Embed(context.Background(), []string{
		"how to install the tool",
		"steps to install the tool quickly",
		"unrelated words entirely elsewhere banana",
	})
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(vectors[0], vectors[1]), dot(vectors[0], vectors[2]))
}
