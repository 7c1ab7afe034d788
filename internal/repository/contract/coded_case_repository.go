package contract

import (
	"context"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CodedCaseRepository interface {
	Create(ctx context.Context, codedCase *entity.CodedCase) error
	Update(ctx context.Context, codedCase *entity.CodedCase) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CodedCase, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CodedCase, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// MaxPosition returns the highest insertion position in the corpus, soft
	// deleted cases included so positions are never reused.
	MaxPosition(ctx context.Context) (int64, error)
}
