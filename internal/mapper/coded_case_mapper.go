package mapper

import (
	"encoding/json"
	"time"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CodedCaseMapper struct{}

func NewCodedCaseMapper() *CodedCaseMapper {
	return &CodedCaseMapper{}
}

func (m *CodedCaseMapper) ToEntity(c *model.CodedCase) *entity.CodedCase {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	var codes []entity.AssignedCode
	if len(c.AssignedCodes) > 0 {
		// A malformed column yields an empty code list rather than an error;
		// the case stays visible for inspection.
		_ = json.Unmarshal(c.AssignedCodes, &codes)
	}

	return &entity.CodedCase{
		Id:            c.Id,
		Narrative:     c.Narrative,
		AssignedCodes: codes,
		SourceIntent:  c.SourceIntent,
		Position:      c.Position,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
		IsDeleted:     c.DeletedAt.Valid,
	}
}

func (m *CodedCaseMapper) ToModel(c *entity.CodedCase) *model.CodedCase {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	codes := c.AssignedCodes
	if codes == nil {
		codes = []entity.AssignedCode{}
	}
	raw, _ := json.Marshal(codes)

	return &model.CodedCase{
		Id:            c.Id,
		Narrative:     c.Narrative,
		AssignedCodes: datatypes.JSON(raw),
		SourceIntent:  c.SourceIntent,
		Position:      c.Position,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
	}
}

func (m *CodedCaseMapper) ToEntities(cases []*model.CodedCase) []*entity.CodedCase {
	entities := make([]*entity.CodedCase, len(cases))
	for i, c := range cases {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
