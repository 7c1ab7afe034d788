package specification

import "gorm.io/gorm"

// Specification is a composable query modifier. Repositories apply each one
// in order onto the same query builder, so a call site can mix filters,
// ordering and pagination freely.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
