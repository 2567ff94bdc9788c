// Package local provides a deterministic offline embedder. It hashes token
// features into a fixed-size vector, so similar texts land near each other
// without any external provider. Useful for air-gapped setups and tests.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"docqa/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 256

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder maps each token onto a hashed coordinate and L2-normalizes the
// resulting count vector.
type Embedder struct {
	dimension int
}

// New returns an Embedder with the given dimension, or DefaultDimension
// when dim is not positive.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dimension: dim}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "local" }

// Dimension returns the fixed vector size.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one unit vector per input text, in input order.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := sha256.Sum256([]byte(tok))
		slot := int(binary.BigEndian.Uint32(h[:4]) % uint32(e.dimension))
		// The sign bit spreads tokens across both directions of each axis,
		// which keeps unrelated texts from accumulating spurious similarity.
		if h[4]&1 == 0 {
			v[slot]++
		} else {
			v[slot]--
		}
	}
	return normalize(v)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
