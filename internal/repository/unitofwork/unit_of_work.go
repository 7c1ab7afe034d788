package unitofwork

import (
	"context"

	"clinical-coding-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CodedCaseRepository() contract.CodedCaseRepository
	CaseEmbeddingRepository() contract.CaseEmbeddingRepository
}
