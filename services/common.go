package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"electrotech/models"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Identity is the authenticated caller, resolved once per request from a verified session token.
type Identity struct {
	UserID   uint
	Username string
	Role     string
	TokenID  string
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

func NewPage(number, limit int) (Page, error) {
	if number < 1 {
		return Page{}, NewValidationError("page", "must be >= 1, got %d", number)
	}
	if limit < 1 || limit > MaxPageLimit {
		return Page{}, NewValidationError("limit", "must be between 1 and %d, got %d", MaxPageLimit, limit)
	}
	return Page{Number: number, Limit: limit}, nil
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Number == 0 {
		p.Number = 1
	}
	return db.Offset(p.Offset()).Limit(p.Limit)
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects that support row locks.
// SQLite serializes writers at the database level instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
