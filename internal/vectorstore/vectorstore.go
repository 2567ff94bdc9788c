// Package vectorstore defines the similarity metrics and ranking rules
// shared by all vector store backends.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"docqa/internal/domain"
)

// Metric is the similarity function of a store instance. It is fixed at
// construction; mixing metrics across writes and reads of one index is
// rejected up front rather than left undefined.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// ParseMetric maps a config string to a Metric. Empty selects cosine.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", string(MetricCosine):
		return MetricCosine, nil
	case string(MetricDot):
		return MetricDot, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", domain.ErrConfig, s)
	}
}

// Similarity computes the score of b against a under the metric. Higher is
// more similar for both metrics.
func Similarity(m Metric, a, b []float32) float64 {
	switch m {
	case MetricDot:
		return dot(a, b)
	default:
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

// Rank orders hits by descending score, breaking ties by (document id,
// chunk index) ascending so equal-score results are deterministic, and
// truncates to topK.
func Rank(hits []domain.Scored, topK int) []domain.Scored {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Entry.DocumentID != hits[j].Entry.DocumentID {
			return hits[i].Entry.DocumentID < hits[j].Entry.DocumentID
		}
		return hits[i].Entry.ChunkIndex < hits[j].Entry.ChunkIndex
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
