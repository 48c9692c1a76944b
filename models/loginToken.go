package models

import "time"

// LoginToken records an issued session token by its jti. Deleting the row revokes the token.
type LoginToken struct {
	ID        uint      `gorm:"primaryKey"`
	TokenID   string    `gorm:"size:36;uniqueIndex;not null"`
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}
