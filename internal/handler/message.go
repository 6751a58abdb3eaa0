package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/service"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type MessageHandler struct {
	messageService   service.MessageService
	readStateService service.ReadStateService
	log              logger.Logger
}

func NewMessageHandler(messageService service.MessageService, readStateService service.ReadStateService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService:   messageService,
		readStateService: readStateService,
		log:              log,
	}
}

type SendMessageRequest struct {
	ReceiverID      uuid.UUID  `json:"receiver_id" binding:"required"`
	Content         string     `json:"content" binding:"required"`
	ParentMessageID *uuid.UUID `json:"parent_message_id"`
}

type ContentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	if req.ParentMessageID != nil {
		if err := h.requireParticipant(c, userID, *req.ParentMessageID); err != nil {
			_ = c.Error(err)
			return
		}
	}

	msg, err := h.messageService.Create(c.Request.Context(), service.CreateMessageInput{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		ParentID:   req.ParentMessageID,
	})
	if err != nil {
		h.log.Warn("Failed to send message", "error", err, "sender_id", userID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Reply(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	parentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	if err := h.requireParticipant(c, userID, parentID); err != nil {
		_ = c.Error(err)
		return
	}

	msg, err := h.messageService.Reply(c.Request.Context(), userID, parentID, req.Content)
	if err != nil {
		h.log.Warn("Failed to reply", "error", err, "parent_message_id", parentID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.messageService.Detail(c.Request.Context(), userID, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	if _, err := h.ownMessage(c, userID, messageID); err != nil {
		_ = c.Error(err)
		return
	}

	msg, err := h.messageService.Edit(c.Request.Context(), messageID, req.Content, userID)
	if err != nil {
		h.log.Warn("Failed to edit message", "error", err, "message_id", messageID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.ownMessage(c, userID, messageID); err != nil {
		_ = c.Error(err)
		return
	}

	removed, err := h.messageService.Delete(c.Request.Context(), messageID, userID)
	if err != nil {
		h.log.Error("Failed to delete message", "error", err, "message_id", messageID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages_removed": removed})
}

func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	history, err := h.messageService.HistoryJSON(c.Request.Context(), userID, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.setRead(c, h.readStateService.MarkRead)
}

func (h *MessageHandler) MarkUnread(c *gin.Context) {
	h.setRead(c, h.readStateService.MarkUnread)
}

func (h *MessageHandler) Sent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messages, err := h.messageService.Sent(c.Request.Context(), userID, limitQuery(c, defaultListLimit, maxListLimit))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (h *MessageHandler) Received(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messages, err := h.messageService.Received(c.Request.Context(), userID, limitQuery(c, defaultListLimit, maxListLimit))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (h *MessageHandler) Preview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	previews, err := h.messageService.Preview(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": previews})
}

type readStateFunc func(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error)

func (h *MessageHandler) setRead(c *gin.Context, apply readStateFunc) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	msg, err := apply(c.Request.Context(), userID, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// requireParticipant lets only the sender or receiver of a message answer it.
func (h *MessageHandler) requireParticipant(c *gin.Context, userID, parentID uuid.UUID) error {
	parent, err := h.messageService.Get(c.Request.Context(), parentID)
	if err != nil {
		return err
	}
	if !parent.Involves(userID) {
		return fmt.Errorf("%w: not a participant of message %s", apperrors.ErrForbidden, parentID)
	}
	return nil
}

// ownMessage loads the message and rejects anyone but its sender.
func (h *MessageHandler) ownMessage(c *gin.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := h.messageService.Get(c.Request.Context(), messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%w: only the sender may change message %s", apperrors.ErrForbidden, messageID)
	}
	return msg, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
