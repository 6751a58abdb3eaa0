package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/middleware"
	"threaded_messaging/internal/service"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Message      *MessageHandler
	Conversation *ConversationHandler
	Inbox        *InboxHandler
	Notification *NotificationHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(cfg),
		Auth:         NewAuthHandler(services.Auth, log),
		User:         NewUserHandler(services.User, log),
		Message:      NewMessageHandler(services.Message, services.ReadState, log),
		Conversation: NewConversationHandler(services.Thread, log),
		Inbox:        NewInboxHandler(services.ReadState, services.User, log),
		Notification: NewNotificationHandler(services.Notification, log),
	}
}

// currentUserID reads the id the auth middleware stored. It aborts with 401
// when it is missing.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		_ = c.Error(apperrors.ErrUnauthorized)
		c.Abort()
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		c.Abort()
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apperrors.Validation(name, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// limitQuery parses ?limit=, defaulting to def and capping at max.
func limitQuery(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func bindError(err error) error {
	return apperrors.NewAPIError("Invalid request: "+err.Error(), 400)
}
