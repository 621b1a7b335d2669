package rag

import (
	"math"
	"sort"
)

// chunk is one embedded fragment of the corpus.
type chunk struct {
	Source  string
	Content string
	Vector  []float64
}

// vectorIndex is an immutable in-memory similarity index. It is built once and
// only read afterwards, so concurrent searches need no locking.
type vectorIndex struct {
	chunks []chunk
}

// search returns the top-k chunks by cosine similarity to the query vector.
func (ix *vectorIndex) search(query []float64, k int) []chunk {
	if len(ix.chunks) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		chunk chunk
		score float64
	}

	ranked := make([]scored, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		ranked = append(ranked, scored{chunk: c, score: cosineSimilarity(query, c.Vector)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	results := make([]chunk, 0, k)
	for _, item := range ranked[:k] {
		results = append(results, item.chunk)
	}

	return results
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
