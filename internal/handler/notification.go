package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	log                 logger.Logger
}

func NewNotificationHandler(notificationService service.NotificationService, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log,
	}
}

// List accepts ?unread=true to hide notifications already read.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	notifications, err := h.notificationService.List(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notificationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, notification)
}
