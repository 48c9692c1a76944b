package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"electrotech/services"
)

func GetConversationListHandler(c *gin.Context, messaging *services.MessagingService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	summaries, err := messaging.ListConversations(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]conversationResponse, 0, len(summaries))
	for i := range summaries {
		resp = append(resp, newConversationResponse(&summaries[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": resp,
	})
}

// StartConversationHandler answers 201 for a new conversation and 200 when the pair already
// had one.
func StartConversationHandler(c *gin.Context, messaging *services.MessagingService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req struct {
		RecipientID uint `json:"recipient_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	summary, created, err := messaging.StartConversation(c.Request.Context(), identity.UserID, req.RecipientID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"conversation": newConversationResponse(summary),
	})
}

// GetMessagesHandler returns a page of messages, newest first. Reading marks every incoming
// message of the conversation as read.
func GetMessagesHandler(c *gin.Context, messaging *services.MessagingService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	conversationID, err := parseIDParam(c, "conversationID")
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	deliveries, err := messaging.FetchMessages(c.Request.Context(), identity.UserID, conversationID, page)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]messageResponse, 0, len(deliveries))
	for i := range deliveries {
		resp = append(resp, newMessageResponse(&deliveries[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": resp,
		"page":     page.Number,
		"limit":    page.Limit,
	})
}

func SendMessageHandler(c *gin.Context, messaging *services.MessagingService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	conversationID, err := parseIDParam(c, "conversationID")
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	delivery, err := messaging.SendMessage(c.Request.Context(), identity.UserID, conversationID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": newMessageResponse(delivery),
	})
}

func GetUnreadMessagesHandler(c *gin.Context, messaging *services.MessagingService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	summary, err := messaging.UnreadSummary(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unread_conversations": summary.Conversations,
		"unread_messages":      summary.Messages,
	})
}
