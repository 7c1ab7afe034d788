package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/workflow/state"

	"github.com/google/uuid"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: f.vector},
	}, nil
}

type fakeIndex struct {
	hits      []ScoredCase
	searchErr error
	count     int64
	countErr  error
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredCase, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) Count(ctx context.Context) (int64, error) {
	return f.count, f.countErr
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func scoredCase(position int64, similarity float64, codes ...state.AssignedCode) ScoredCase {
	return ScoredCase{
		Case: CodedCase{
			ID:            uuid.New(),
			Position:      position,
			AssignedCodes: codes,
		},
		Similarity: similarity,
	}
}

func TestRetrieveMapsHitsToState(t *testing.T) {
	hit := scoredCase(1, 0.91, state.AssignedCode{Code: "410.9", CodeSystem: state.CodeSystemICD9})
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeIndex{hits: []ScoredCase{hit}, count: 1},
		testLogger(),
		DefaultConfig(),
	)

	result, err := retriever.Retrieve(context.Background(), "acute MI note", state.IntentDiagnostic)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if result.CorpusEmpty {
		t.Error("CorpusEmpty = true, want false")
	}
	if len(result.Cases) != 1 {
		t.Fatalf("case count = %d, want 1", len(result.Cases))
	}

	got := result.Cases[0]
	if got.CaseID != hit.Case.ID {
		t.Errorf("CaseID = %s, want %s", got.CaseID, hit.Case.ID)
	}
	if got.Similarity != 0.91 {
		t.Errorf("Similarity = %v, want 0.91", got.Similarity)
	}
	if len(got.AssignedCodes) != 1 || got.AssignedCodes[0].Code != "410.9" {
		t.Errorf("AssignedCodes = %v, want the single 410.9 entry", got.AssignedCodes)
	}
}

func TestRetrieveNeverExceedsTopK(t *testing.T) {
	hits := make([]ScoredCase, 0, 9)
	for i := int64(0); i < 9; i++ {
		hits = append(hits, scoredCase(i, 1.0-float64(i)*0.05,
			state.AssignedCode{Code: "401.9", CodeSystem: state.CodeSystemICD9}))
	}

	config := DefaultConfig()
	config.TopK = 4
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeIndex{hits: hits, count: 9},
		testLogger(),
		config,
	)

	result, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(result.Cases) > 4 {
		t.Errorf("case count = %d, want at most 4", len(result.Cases))
	}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeIndex{hits: nil, count: 0},
		testLogger(),
		DefaultConfig(),
	)

	result, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if !result.CorpusEmpty {
		t.Error("CorpusEmpty = false, want true")
	}
	if len(result.Cases) != 0 {
		t.Errorf("case count = %d, want 0", len(result.Cases))
	}
}

func TestRetrieveZeroHitsOnPopulatedCorpus(t *testing.T) {
	// Zero hits with a populated corpus is not the empty-corpus condition.
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeIndex{hits: nil, count: 12},
		testLogger(),
		DefaultConfig(),
	)

	result, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if result.CorpusEmpty {
		t.Error("CorpusEmpty = true, want false when the corpus has cases")
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{err: fmt.Errorf("provider down")},
		&fakeIndex{},
		testLogger(),
		DefaultConfig(),
	)

	_, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err == nil {
		t.Fatal("Retrieve should error when embedding fails")
	}

	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Errorf("error = %T, want *EmbedError", err)
	}
}

func TestRetrieveEmbedTimeout(t *testing.T) {
	config := DefaultConfig()
	config.EmbedTimeout = 10 * time.Millisecond

	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}, delay: 200 * time.Millisecond},
		&fakeIndex{},
		testLogger(),
		config,
	)

	_, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err == nil {
		t.Fatal("Retrieve should error when embedding exceeds its deadline")
	}

	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Fatalf("error = %T, want *EmbedError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error chain = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestRetrieveSearchFailure(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeIndex{searchErr: fmt.Errorf("connection refused")},
		testLogger(),
		DefaultConfig(),
	)

	_, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err == nil {
		t.Fatal("Retrieve should error when the index fails")
	}

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Errorf("error = %T, want *SearchError", err)
	}
}

func TestRetrieveEmptyEmbeddingRejected(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{vector: nil},
		&fakeIndex{},
		testLogger(),
		DefaultConfig(),
	)

	_, err := retriever.Retrieve(context.Background(), "note", state.IntentGeneral)
	if err == nil {
		t.Fatal("Retrieve should reject an empty embedding vector")
	}

	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Errorf("error = %T, want *EmbedError", err)
	}
}
