package models

import "time"

// Cart belongs to exactly one user. The row outlives its items.
type Cart struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"uniqueIndex;not null"`
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}
