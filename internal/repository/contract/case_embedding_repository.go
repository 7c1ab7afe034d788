package contract

import (
	"context"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredCodedCase pairs a corpus case with the best similarity any of its
// chunks reached for a query vector.
type ScoredCodedCase struct {
	Case       *entity.CodedCase
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type CaseEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.CaseEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.CaseEmbedding) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByCaseId(ctx context.Context, caseId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarCases runs nearest-neighbour search over the chunk
	// embeddings and aggregates to one row per case: the case's score is its
	// best chunk. Ordered similarity descending, position ascending on ties.
	SearchSimilarCases(ctx context.Context, embedding []float32, limit int) ([]*ScoredCodedCase, error)
}
