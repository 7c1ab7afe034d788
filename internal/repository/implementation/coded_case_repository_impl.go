package implementation

import (
	"context"
	"errors"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/mapper"
	"clinical-coding-be/internal/model"
	"clinical-coding-be/internal/repository/contract"
	"clinical-coding-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CodedCaseRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CodedCaseMapper
}

func NewCodedCaseRepository(db *gorm.DB) contract.CodedCaseRepository {
	return &CodedCaseRepositoryImpl{
		db:     db,
		mapper: mapper.NewCodedCaseMapper(),
	}
}

func (r *CodedCaseRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CodedCaseRepositoryImpl) Create(ctx context.Context, codedCase *entity.CodedCase) error {
	m := r.mapper.ToModel(codedCase)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*codedCase = *r.mapper.ToEntity(m)
	return nil
}

func (r *CodedCaseRepositoryImpl) Update(ctx context.Context, codedCase *entity.CodedCase) error {
	m := r.mapper.ToModel(codedCase)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*codedCase = *r.mapper.ToEntity(m)
	return nil
}

func (r *CodedCaseRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.CodedCase{}, id).Error
}

func (r *CodedCaseRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CodedCase, error) {
	var m model.CodedCase
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CodedCaseRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CodedCase, error) {
	var models []*model.CodedCase
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CodedCaseRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.CodedCase{}).Count(&count).Error
	return count, err
}

func (r *CodedCaseRepositoryImpl) MaxPosition(ctx context.Context) (int64, error) {
	var max *int64
	// Unscoped so a deleted case's position is never handed out again.
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.CodedCase{}).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
