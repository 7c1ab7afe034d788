package repository

import (
	"context"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/pkg/workflow/retrieval"
	"clinical-coding-be/pkg/workflow/state"
)

// PgVectorCaseIndex adapts the case embedding repository to the workflow's
// read-only CaseIndex seam. Each call opens a short-lived unit of work; the
// workflow never writes through this path.
type PgVectorCaseIndex struct {
	factory unitofwork.RepositoryFactory
}

var _ retrieval.CaseIndex = &PgVectorCaseIndex{}

func NewPgVectorCaseIndex(factory unitofwork.RepositoryFactory) *PgVectorCaseIndex {
	return &PgVectorCaseIndex{factory: factory}
}

func (ix *PgVectorCaseIndex) Search(ctx context.Context, vector []float32, k int) ([]retrieval.ScoredCase, error) {
	uow := ix.factory.NewUnitOfWork(ctx)

	scored, err := uow.CaseEmbeddingRepository().SearchSimilarCases(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	hits := make([]retrieval.ScoredCase, 0, len(scored))
	for _, s := range scored {
		if s.Case == nil {
			continue
		}
		hits = append(hits, retrieval.ScoredCase{
			Case:       toRetrievalCase(s.Case),
			Similarity: s.Similarity,
		})
	}
	return hits, nil
}

func (ix *PgVectorCaseIndex) Count(ctx context.Context) (int64, error) {
	uow := ix.factory.NewUnitOfWork(ctx)
	return uow.CodedCaseRepository().Count(ctx)
}

func toRetrievalCase(c *entity.CodedCase) retrieval.CodedCase {
	codes := make([]state.AssignedCode, 0, len(c.AssignedCodes))
	for _, ac := range c.AssignedCodes {
		codes = append(codes, state.AssignedCode{
			Code:       ac.Code,
			CodeSystem: state.CodeSystem(ac.CodeSystem),
		})
	}
	return retrieval.CodedCase{
		ID:            c.Id,
		Narrative:     c.Narrative,
		AssignedCodes: codes,
		SourceIntent:  state.Intent(c.SourceIntent),
		Position:      c.Position,
	}
}
