package models

import "time"

type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"index;not null"`
	AuthorID       uint   `gorm:"index;not null"`
	Content        string `gorm:"type:text;not null"`
	CreatedAt      time.Time
}

// MessageDelivery is the per-direction record of a message: who sent it to whom and whether
// the recipient has read it.
type MessageDelivery struct {
	ID             uint `gorm:"primaryKey"`
	ConversationID uint `gorm:"index:idx_delivery_inbox,priority:2;not null"`
	MessageID      uint `gorm:"uniqueIndex;not null"`
	Message        Message
	SenderID       uint `gorm:"not null"`
	RecipientID    uint `gorm:"index:idx_delivery_inbox,priority:1;not null"`
	IsRead         bool `gorm:"not null"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"index"`
}
