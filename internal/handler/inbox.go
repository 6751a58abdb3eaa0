package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type InboxHandler struct {
	readStateService service.ReadStateService
	userService      service.UserService
	log              logger.Logger
}

func NewInboxHandler(readStateService service.ReadStateService, userService service.UserService, log logger.Logger) *InboxHandler {
	return &InboxHandler{
		readStateService: readStateService,
		userService:      userService,
		log:              log,
	}
}

func (h *InboxHandler) Inbox(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	inbox, err := h.readStateService.Inbox(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inbox)
}

func (h *InboxHandler) Unread(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messages, err := h.readStateService.UnreadFor(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (h *InboxHandler) UnreadCounts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	counts, err := h.readStateService.Counts(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (h *InboxHandler) UnreadThreads(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	roots, err := h.readStateService.UnreadRootThreads(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": nonNil(roots)})
}

func (h *InboxHandler) UnreadFrom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sender, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.readStateService.UnreadFromSender(c.Request.Context(), userID, sender.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (h *InboxHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.readStateService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": updated})
}
