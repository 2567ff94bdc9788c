package pgvector

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewRejectsUnsafeTableName(t *testing.T) {
	_, err := New(context.Background(), Config{DSN: "postgres://localhost/db", Table: "chunks; DROP TABLE users"})
	require.ErrorIs(t, err, domain.ErrConfig)
	_, err = New(context.Background(), Config{DSN: "postgres://localhost/db", Table: "1starts_with_digit"})
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, validIdentifier("doc_chunks"))
	assert.True(t, validIdentifier("chunks_v2"))
	assert.False(t, validIdentifier(""))
	assert.False(t, validIdentifier("Chunks"))
	assert.False(t, validIdentifier("doc-chunks"))
	assert.False(t, validIdentifier("2chunks"))
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,-0.5,0]", vectorLiteral([]float32{1, -0.5, 0}))
}

func TestVectorLiteralRoundTripsFloat32(t *testing.T) {
	in := []float32{1e-8, 0.1, -3.1415927, 1e20}
	parts := strings.Split(strings.Trim(vectorLiteral(in), "[]"), ",")
	require.Len(t, parts, len(in))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		require.NoError(t, err)
		assert.Equal(t, in[i], float32(f), "component %d must not lose precision", i)
	}
}
