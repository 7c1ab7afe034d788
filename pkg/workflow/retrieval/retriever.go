package retrieval

import (
	"context"
	"fmt"
	"log"
	"time"

	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/workflow/state"

	"github.com/google/uuid"
)

// CodedCase is one immutable corpus record as the index exposes it. Position
// is the corpus insertion order and doubles as the similarity tie-break key.
type CodedCase struct {
	ID            uuid.UUID
	Narrative     string
	AssignedCodes []state.AssignedCode
	SourceIntent  state.Intent
	Position      int64
}

// ScoredCase pairs a corpus case with its similarity to the query embedding.
type ScoredCase struct {
	Case       CodedCase
	Similarity float64
}

// CaseIndex is the read-only nearest-neighbour view of the coded corpus.
// Implementations must order results by similarity descending with ties
// broken by Position ascending, and must never return more than k hits.
type CaseIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]ScoredCase, error)
	Count(ctx context.Context) (int64, error)
}

// EmbedError marks a failure of the embedding collaborator, including a
// deadline hit. Without a query embedding there is no retrieval path.
type EmbedError struct {
	Err error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embedding generation failed: %v", e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }

// SearchError marks a failure of the case index itself.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("case index search failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Config encapsulates retrieval parameters.
type Config struct {
	TopK          int
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

// DefaultConfig returns default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		TopK:          5,
		EmbedTimeout:  20 * time.Second,
		SearchTimeout: 10 * time.Second,
	}
}

// Result is the retrieval stage output. CorpusEmpty distinguishes "nothing
// similar exists because nothing exists at all" from a ranked hit list; an
// empty corpus is not an error.
type Result struct {
	Cases       []state.RetrievedCase
	CorpusEmpty bool
}

// Retriever runs the query embedding and nearest-neighbour search.
type Retriever struct {
	embeddingProvider embedding.EmbeddingProvider
	index             CaseIndex
	logger            *log.Logger
	config            Config
}

func NewRetriever(embeddingProvider embedding.EmbeddingProvider, index CaseIndex, logger *log.Logger, config Config) *Retriever {
	return &Retriever{
		embeddingProvider: embeddingProvider,
		index:             index,
		logger:            logger,
		config:            config,
	}
}

// Retrieve returns the top-K corpus cases most similar to the query. The
// intent is recorded for diagnostics; ranking itself is purely semantic.
func (r *Retriever) Retrieve(ctx context.Context, rawQuery string, intent state.Intent) (*Result, error) {
	vector, err := r.embedQuery(ctx, rawQuery)
	if err != nil {
		r.logger.Printf("[ERROR] Query embedding failed: %v", err)
		return nil, &EmbedError{Err: err}
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.config.SearchTimeout)
	defer cancel()

	scored, err := r.index.Search(searchCtx, vector, r.config.TopK)
	if err != nil {
		r.logger.Printf("[ERROR] Vector search failed: %v", err)
		return nil, &SearchError{Err: err}
	}

	// The index contract already caps at K; enforce it anyway so a misbehaving
	// implementation cannot widen the result set.
	if len(scored) > r.config.TopK {
		scored = scored[:r.config.TopK]
	}

	r.logger.Printf("[RETRIEVAL] Intent=%s, hits=%d (top-K=%d)", intent, len(scored), r.config.TopK)

	result := &Result{
		Cases: make([]state.RetrievedCase, 0, len(scored)),
	}
	if len(scored) == 0 {
		count, countErr := r.index.Count(searchCtx)
		if countErr != nil {
			r.logger.Printf("[WARN] Corpus count failed after zero hits: %v", countErr)
		}
		result.CorpusEmpty = countErr == nil && count == 0
	}
	for i, hit := range scored {
		r.logger.Printf("[RETRIEVAL] Hit %d: case=%s similarity=%.4f codes=%d",
			i+1, hit.Case.ID, hit.Similarity, len(hit.Case.AssignedCodes))
		result.Cases = append(result.Cases, state.RetrievedCase{
			CaseID:        hit.Case.ID,
			Similarity:    hit.Similarity,
			AssignedCodes: append([]state.AssignedCode(nil), hit.Case.AssignedCodes...),
		})
	}

	return result, nil
}

// embedQuery calls the embedding collaborator under a bounded deadline. The
// provider interface is synchronous, so the call runs in its own goroutine
// and is abandoned when the deadline passes.
func (r *Retriever) embedQuery(ctx context.Context, rawQuery string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.config.EmbedTimeout)
	defer cancel()

	type embedOutcome struct {
		res *embedding.EmbeddingResponse
		err error
	}
	outcome := make(chan embedOutcome, 1)

	go func() {
		res, err := r.embeddingProvider.Generate(rawQuery, "RETRIEVAL_QUERY")
		outcome <- embedOutcome{res: res, err: err}
	}()

	select {
	case <-embedCtx.Done():
		return nil, embedCtx.Err()
	case out := <-outcome:
		if out.err != nil {
			return nil, out.err
		}
		if out.res == nil || len(out.res.Embedding.Values) == 0 {
			return nil, fmt.Errorf("provider returned empty embedding")
		}
		return out.res.Embedding.Values, nil
	}
}
