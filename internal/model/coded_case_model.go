package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CodedCase struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Narrative     string         `gorm:"type:text;not null"`
	AssignedCodes datatypes.JSON `gorm:"type:jsonb;not null"`
	SourceIntent  string         `gorm:"type:varchar(32);index"`
	Position      int64          `gorm:"not null;index"` // insertion order, tie-break key for equal similarity
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (CodedCase) TableName() string {
	return "coded_cases"
}
