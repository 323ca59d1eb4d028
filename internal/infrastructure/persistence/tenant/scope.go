// Package tenant provides GORM scopes that confine queries to one tenant.
//
//	db.Scopes(tenant.Scope(tenantID), tenant.ForUpdate()).First(&line)
package tenant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope restricts the query to rows of tenantID. A nil tenant matches nothing.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ForUpdate adds a row lock to the query. Drivers without row locks (sqlite)
// drop the clause.
func ForUpdate() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
}
