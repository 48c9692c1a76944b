package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"electrotech/models"
)

const MaxMessageLength = 4000

// ConversationSummary is a conversation seen from one participant.
type ConversationSummary struct {
	Conversation models.Conversation
	Other        models.User
	LastMessage  *models.Message
	Unread       int64
}

type UnreadSummary struct {
	Conversations int64
	Messages      int64
}

type MessagingService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMessagingService(db *gorm.DB) *MessagingService {
	return &MessagingService{db: db, now: time.Now}
}

// StartConversation returns the conversation between userID and otherID, creating it when
// the pair has none yet. created reports whether a new conversation was made.
func (s *MessagingService) StartConversation(ctx context.Context, userID, otherID uint) (*ConversationSummary, bool, error) {
	if otherID == 0 {
		return nil, false, NewValidationError("recipient_id", "is required")
	}
	if otherID == userID {
		return nil, false, NewValidationError("recipient_id", "cannot start a conversation with yourself")
	}

	db := s.db.WithContext(ctx)

	var other models.User
	if err := db.First(&other, otherID).Error; err != nil {
		return nil, false, notFoundOr(err, "user", otherID)
	}

	low, high := models.NormalizePair(userID, otherID)
	conv, found, err := findConversation(db, low, high)
	if err != nil {
		return nil, false, err
	}

	created := false
	if !found {
		conv = &models.Conversation{ParticipantLowID: low, ParticipantHighID: high, LastMessageAt: s.now()}
		err := db.Create(conv).Error
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// lost a race with the other participant; use their row
			conv, found, err = findConversation(db, low, high)
			if err != nil {
				return nil, false, err
			}
			if !found {
				return nil, false, fmt.Errorf("conversation %d/%d vanished after conflict", low, high)
			}
		case err != nil:
			return nil, false, fmt.Errorf("create conversation: %w", err)
		default:
			created = true
		}
	}

	summary, err := summarize(db, userID, *conv)
	if err != nil {
		return nil, false, err
	}
	return summary, created, nil
}

func findConversation(db *gorm.DB, low, high uint) (*models.Conversation, bool, error) {
	var conv models.Conversation
	res := db.Where("participant_low_id = ? AND participant_high_id = ?", low, high).Limit(1).Find(&conv)
	if res.Error != nil {
		return nil, false, fmt.Errorf("query conversation: %w", res.Error)
	}
	return &conv, res.RowsAffected > 0, nil
}

func summarize(db *gorm.DB, userID uint, conv models.Conversation) (*ConversationSummary, error) {
	summary := &ConversationSummary{Conversation: conv}

	otherID := conv.OtherParticipant(userID)
	if err := db.Unscoped().First(&summary.Other, otherID).Error; err != nil {
		return nil, notFoundOr(err, "user", otherID)
	}

	var last models.Message
	res := db.Where("conversation_id = ?", conv.ID).Order("id desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("query last message: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		summary.LastMessage = &last
	}

	err := db.Model(&models.MessageDelivery{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conv.ID, userID, false).
		Count(&summary.Unread).
		Error
	if err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}
	return summary, nil
}

// ListConversations returns the user's conversations with the most recent activity first.
func (s *MessagingService) ListConversations(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	db := s.db.WithContext(ctx)

	var convs []models.Conversation
	err := db.Where("participant_low_id = ? OR participant_high_id = ?", userID, userID).
		Order("last_message_at desc, id desc").
		Find(&convs).
		Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := summarize(db, userID, conv)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func participantConversation(tx *gorm.DB, userID, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.First(&conv, conversationID).Error; err != nil {
		return nil, notFoundOr(err, "conversation", conversationID)
	}
	if !conv.Includes(userID) {
		return nil, &ForbiddenError{Message: "not a participant of this conversation"}
	}
	return &conv, nil
}

// SendMessage appends a message and an unread delivery addressed to the other participant.
func (s *MessagingService) SendMessage(ctx context.Context, userID, conversationID uint, content string) (*models.MessageDelivery, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, NewValidationError("content", "must not be empty")
	}
	if len(content) > MaxMessageLength {
		return nil, NewValidationError("content", "must be at most %d characters", MaxMessageLength)
	}

	var delivery models.MessageDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := participantConversation(tx, userID, conversationID)
		if err != nil {
			return err
		}

		now := s.now()
		msg := models.Message{ConversationID: conv.ID, AuthorID: userID, Content: content, CreatedAt: now}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		delivery = models.MessageDelivery{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderID:       userID,
			RecipientID:    conv.OtherParticipant(userID),
			CreatedAt:      now,
		}
		if err := tx.Omit("Message").Create(&delivery).Error; err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		delivery.Message = msg

		if err := tx.Model(conv).UpdateColumn("last_message_at", now).Error; err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// FetchMessages returns one page of the conversation, newest first.
//
// Side effect: every unread delivery addressed to userID in this conversation is marked read,
// in the same transaction as the read.
func (s *MessagingService) FetchMessages(ctx context.Context, userID, conversationID uint, page Page) ([]models.MessageDelivery, error) {
	var deliveries []models.MessageDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := participantConversation(tx, userID, conversationID)
		if err != nil {
			return err
		}

		err = tx.Model(&models.MessageDelivery{}).
			Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conv.ID, userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": s.now()}).
			Error
		if err != nil {
			return fmt.Errorf("mark messages read: %w", err)
		}

		err = page.apply(tx.Where("conversation_id = ?", conv.ID).Order("id desc")).
			Preload("Message").
			Find(&deliveries).
			Error
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (s *MessagingService) UnreadSummary(ctx context.Context, userID uint) (*UnreadSummary, error) {
	db := s.db.WithContext(ctx)
	var summary UnreadSummary

	err := db.Model(&models.MessageDelivery{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&summary.Messages).
		Error
	if err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}

	err = db.Model(&models.MessageDelivery{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Distinct("conversation_id").
		Count(&summary.Conversations).
		Error
	if err != nil {
		return nil, fmt.Errorf("count unread conversations: %w", err)
	}
	return &summary, nil
}
