package implementation

import (
	"context"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/mapper"
	"clinical-coding-be/internal/model"
	"clinical-coding-be/internal/repository/contract"
	"clinical-coding-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type CaseEmbeddingRepositoryImpl struct {
	db         *gorm.DB
	mapper     *mapper.CaseEmbeddingMapper
	caseMapper *mapper.CodedCaseMapper
}

func NewCaseEmbeddingRepository(db *gorm.DB) contract.CaseEmbeddingRepository {
	return &CaseEmbeddingRepositoryImpl{
		db:         db,
		mapper:     mapper.NewCaseEmbeddingMapper(),
		caseMapper: mapper.NewCodedCaseMapper(),
	}
}

func (r *CaseEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CaseEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.CaseEmbedding) error {
	m := r.mapper.ToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *CaseEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.CaseEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	models := r.mapper.ToModels(embeddings)
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *CaseEmbeddingRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.CaseEmbedding{}, id).Error
}

func (r *CaseEmbeddingRepositoryImpl) DeleteByCaseId(ctx context.Context, caseId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("case_id = ?", caseId).Delete(&model.CaseEmbedding{}).Error
}

func (r *CaseEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseEmbedding, error) {
	var models []*model.CaseEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CaseEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.CaseEmbedding{}).Count(&count).Error
	return count, err
}

// SearchSimilarCases aggregates chunk-level nearest-neighbour hits up to case
// level. pgvector's <=> operator is cosine distance, so similarity is
// 1 - distance; a case's score is the best of its chunks (MIN distance).
func (r *CaseEmbeddingRepositoryImpl) SearchSimilarCases(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredCodedCase, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.CodedCase
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("case_embeddings").
		Select("coded_cases.*, 1 - MIN(embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN coded_cases ON coded_cases.id = case_embeddings.case_id").
		Where("case_embeddings.deleted_at IS NULL").
		Where("coded_cases.deleted_at IS NULL").
		Group("coded_cases.id").
		Order("similarity DESC, coded_cases.position ASC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredCodedCase, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredCodedCase{
			Case:       r.caseMapper.ToEntity(&res.CodedCase),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
