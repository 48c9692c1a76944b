package models

import "time"

// Conversation is keyed by the unordered participant pair, stored as (low, high).
type Conversation struct {
	ID                uint      `gorm:"primaryKey"`
	ParticipantLowID  uint      `gorm:"uniqueIndex:idx_conversation_pair;not null"`
	ParticipantHighID uint      `gorm:"uniqueIndex:idx_conversation_pair;not null"`
	LastMessageAt     time.Time `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NormalizePair orders two user ids so that (a, b) and (b, a) map to the same key.
func NormalizePair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c Conversation) Includes(userID uint) bool {
	return c.ParticipantLowID == userID || c.ParticipantHighID == userID
}

func (c Conversation) OtherParticipant(userID uint) uint {
	if c.ParticipantLowID == userID {
		return c.ParticipantHighID
	}
	return c.ParticipantLowID
}
