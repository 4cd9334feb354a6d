package store

import (
	"math"
	"sort"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is empty, zero or their dimensions differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// rankFacts scores candidates against the query embedding and keeps the
// best limit results strictly above threshold.
func rankFacts(candidates []domain.Fact, embedding []float32, threshold float32, limit int) []domain.FactWithScore {
	if limit <= 0 {
		limit = 5
	}
	var scored []domain.FactWithScore
	for _, f := range candidates {
		score := CosineSimilarity(f.Embedding, embedding)
		if score > threshold {
			scored = append(scored, domain.FactWithScore{Fact: f, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
