package entity

import (
	"time"

	"github.com/google/uuid"
)

// AssignedCode is one billing code attached to a coded case. Serialized into
// the case's JSON column, so the json tags are part of the storage format.
type AssignedCode struct {
	Code       string `json:"code"`
	CodeSystem string `json:"code_system"`
}

type CodedCase struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Narrative     string
	AssignedCodes []AssignedCode
	SourceIntent  string
	Position      int64
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
