package retrieval

import (
	"context"
	"math"
	"sort"
)

// IndexedCase is a corpus case together with its embedding vector.
type IndexedCase struct {
	Case   CodedCase
	Vector []float32
}

// InMemoryIndex is a CaseIndex over a fixed in-process corpus. It is
// immutable after construction, so concurrent searches need no locking.
// Used by the diagnose harness and tests; production serving goes through
// the pgvector-backed repository.
type InMemoryIndex struct {
	cases []IndexedCase
}

func NewInMemoryIndex(cases []IndexedCase) *InMemoryIndex {
	owned := make([]IndexedCase, len(cases))
	copy(owned, cases)
	return &InMemoryIndex{cases: owned}
}

func (ix *InMemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(ix.cases) == 0 {
		return nil, nil
	}

	scored := make([]ScoredCase, 0, len(ix.cases))
	for _, entry := range ix.cases {
		scored = append(scored, ScoredCase{
			Case:       entry.Case,
			Similarity: CosineSimilarity(vector, entry.Vector),
		})
	}

	// Similarity descending, insertion order ascending on ties.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Case.Position < scored[j].Case.Position
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (ix *InMemoryIndex) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(ix.cases)), nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, 0
// when either has no magnitude or the dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
