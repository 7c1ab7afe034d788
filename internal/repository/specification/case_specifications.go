package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySourceIntent narrows coded cases to one clinical intent category.
type BySourceIntent struct {
	Intent string
}

func (s BySourceIntent) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_intent = ?", s.Intent)
}

// ByCaseID matches embedding chunks belonging to one coded case.
type ByCaseID struct {
	CaseID uuid.UUID
}

func (s ByCaseID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("case_id = ?", s.CaseID)
}

// OrderByPosition orders by corpus insertion order.
type OrderByPosition struct{}

func (s OrderByPosition) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
