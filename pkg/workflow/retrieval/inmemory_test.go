package retrieval

import (
	"context"
	"math"
	"testing"

	"clinical-coding-be/pkg/workflow/state"

	"github.com/google/uuid"
)

func indexedCase(position int64, vector []float32) IndexedCase {
	return IndexedCase{
		Case: CodedCase{
			ID:       uuid.New(),
			Position: position,
			AssignedCodes: []state.AssignedCode{
				{Code: "410.9", CodeSystem: state.CodeSystemICD9},
			},
		},
		Vector: vector,
	}
}

func TestInMemorySearchOrdersBySimilarity(t *testing.T) {
	query := []float32{1, 0}
	index := NewInMemoryIndex([]IndexedCase{
		indexedCase(1, []float32{0, 1}),       // orthogonal, similarity 0
		indexedCase(2, []float32{1, 0}),       // identical, similarity 1
		indexedCase(3, []float32{1, 1}),       // similarity ~0.707
	})

	hits, err := index.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(hits) != 3 {
		t.Fatalf("hit count = %d, want 3", len(hits))
	}

	wantPositions := []int64{2, 3, 1}
	for i, want := range wantPositions {
		if hits[i].Case.Position != want {
			t.Errorf("hit %d position = %d, want %d", i, hits[i].Case.Position, want)
		}
	}
	if hits[0].Similarity < hits[1].Similarity || hits[1].Similarity < hits[2].Similarity {
		t.Errorf("similarities not descending: %v, %v, %v",
			hits[0].Similarity, hits[1].Similarity, hits[2].Similarity)
	}
}

func TestInMemorySearchBreaksTiesByPosition(t *testing.T) {
	query := []float32{1, 0}
	same := []float32{1, 0}
	index := NewInMemoryIndex([]IndexedCase{
		indexedCase(7, same),
		indexedCase(3, same),
		indexedCase(5, same),
	})

	hits, err := index.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	wantPositions := []int64{3, 5, 7}
	for i, want := range wantPositions {
		if hits[i].Case.Position != want {
			t.Errorf("hit %d position = %d, want %d", i, hits[i].Case.Position, want)
		}
	}
}

func TestInMemorySearchCapsAtK(t *testing.T) {
	query := []float32{1, 0}
	cases := make([]IndexedCase, 0, 8)
	for i := int64(0); i < 8; i++ {
		cases = append(cases, indexedCase(i, []float32{1, float32(i) * 0.1}))
	}
	index := NewInMemoryIndex(cases)

	hits, err := index.Search(context.Background(), query, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("hit count = %d, want 3", len(hits))
	}
}

func TestInMemorySearchEmptyIndex(t *testing.T) {
	index := NewInMemoryIndex(nil)

	hits, err := index.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hit count = %d, want 0", len(hits))
	}

	count, err := index.Count(context.Background())
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestInMemorySearchCancelledContext(t *testing.T) {
	index := NewInMemoryIndex([]IndexedCase{indexedCase(1, []float32{1, 0})})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := index.Search(ctx, []float32{1, 0}, 5); err == nil {
		t.Error("Search with cancelled context should error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "dimension mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
