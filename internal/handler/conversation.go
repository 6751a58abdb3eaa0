package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type ConversationHandler struct {
	threadService service.ThreadService
	log           logger.Logger
}

func NewConversationHandler(threadService service.ThreadService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		threadService: threadService,
		log:           log,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversations, err := h.threadService.Conversations(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": nonNil(conversations)})
}

// Get returns the thread containing :id, whichever message of it is named.
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	conversation, err := h.threadService.Conversation(c.Request.Context(), userID, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *ConversationHandler) Tree(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	tree, err := h.threadService.ConversationTreeJSON(c.Request.Context(), userID, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tree)
}
