package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// ChatHandler manages the messaging endpoints.
type ChatHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	uploader    media.Uploader
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, uploader media.Uploader, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		uploader:    uploader,
		hub:         hub,
		audit:       audit,
	}
}

// SendMessage stores a message (text or media) and pushes it to the receiver.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.GetInt("userID")

	receiverID, err := strconv.Atoi(c.PostForm("receiver_id"))
	if err != nil || receiverID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver id"})
		return
	}

	receiver, err := h.userRepo.GetUser(c.Request.Context(), receiverID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "receiver not found"})
		return
	}

	sender, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sender"})
		return
	}

	content := c.PostForm("message")
	contentType := models.ContentTypeText
	mediaURL := ""

	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()

		contentType, err = media.ResolveContentType(header.Header.Get("Content-Type"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media type"})
			return
		}

		mediaURL, err = h.uploader.Upload(c.Request.Context(), uuid.NewString(), header.Header.Get("Content-Type"), file)
		if err != nil {
			h.emitAudit(c, "ERROR", "media upload failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed"})
			return
		}
	} else if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
		return
	}

	conv, err := h.convRepo.CreateOrGet(c.Request.Context(), userID, receiverID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve conversation"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), models.Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		ReceiverID:     receiverID,
		Content:        content,
		ContentType:    contentType,
		MediaURL:       mediaURL,
		Status:         models.StatusSent,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if err := h.convRepo.SetLastMessage(c.Request.Context(), conv.ID, msg.ID); err != nil {
		h.emitAudit(c, "ERROR", "failed to update conversation last message")
	}
	if err := h.convRepo.IncrementUnread(c.Request.Context(), conv.ID); err != nil {
		h.emitAudit(c, "ERROR", "failed to increment unread count")
	}

	senderInfo := sender.Info()
	receiverInfo := receiver.Info()
	msg.Sender = &senderInfo
	msg.Receiver = &receiverInfo

	// Delivery is observed, not requested: the status only advances when the
	// receiver's live connection actually took the event.
	if h.hub.EmitToUser(receiverID, ws.EventReceiveMessage, msg) {
		if err := h.messageRepo.UpdateStatus(c.Request.Context(), msg.ID, models.StatusDelivered); err == nil {
			msg.Status = models.StatusDelivered
		}
	}

	h.emitAudit(c, "INFO", "message sent")
	c.JSON(http.StatusCreated, msg)
}

// GetConversations lists the authenticated user's conversations, newest
// activity first, with counterpart display fields and the latest message.
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.convRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	friendIDs := make([]int, 0, len(convs))
	for _, conv := range convs {
		friendIDs = append(friendIDs, conv.Participant(userID))
	}

	friendByID := map[int]models.UserInfo{}
	if len(friendIDs) > 0 {
		users, err := h.userRepo.GetUsers(c.Request.Context(), friendIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
			return
		}
		for _, u := range users {
			friendByID[u.ID] = u.Info()
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := models.ConversationSummary{
			Conversation: conv,
			Friend:       friendByID[conv.Participant(userID)],
		}
		if conv.LastMessageID != 0 {
			if last, err := h.messageRepo.GetMessage(c.Request.Context(), conv.LastMessageID); err == nil {
				summary.LastMessage = &last
			}
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages returns a conversation's messages in creation order. Fetching
// marks everything addressed to the requester as read and resets the unread
// counter.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msgs, err := h.messageRepo.ListByConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	reactions, err := h.messageRepo.ListReactionsByConversation(c.Request.Context(), conversationID)
	if err == nil && len(reactions) > 0 {
		byMessage := map[int][]models.Reaction{}
		for _, reaction := range reactions {
			byMessage[reaction.MessageID] = append(byMessage[reaction.MessageID], reaction)
		}
		for i := range msgs {
			msgs[i].Reactions = byMessage[msgs[i].ID]
		}
	}

	if err := h.messageRepo.MarkConversationRead(c.Request.Context(), conversationID, userID); err != nil {
		h.emitAudit(c, "ERROR", "failed to mark conversation read")
	}
	if err := h.convRepo.ResetUnread(c.Request.Context(), conversationID); err != nil {
		h.emitAudit(c, "ERROR", "failed to reset unread count")
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkAsRead bulk-transitions the given messages to read and notifies each
// original sender so read receipts update live.
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	var req struct {
		MessageIDs []int `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.messageRepo.MarkRead(c.Request.Context(), req.MessageIDs, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	updated := make([]int, 0, len(msgs))
	for _, msg := range msgs {
		updated = append(updated, msg.ID)
		h.hub.EmitToUser(msg.SenderID, ws.EventMessageStatusUpdate, ws.MessageStatusPayload{
			MessageID: msg.ID,
			Status:    msg.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteMessage hard-deletes a message. Only the sender may delete; the other
// participant is notified with the deleted ID.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only sender can delete"})
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	h.hub.EmitToUser(msg.ReceiverID, ws.EventMessageDeleted, gin.H{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	})
	h.emitAudit(c, "INFO", "message deleted")
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
