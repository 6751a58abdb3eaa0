package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

const deleteConfirmation = "delete"

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetMe(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Summary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summary, err := h.userService.Summary(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

type DeleteAccountRequest struct {
	Confirmation string `json:"confirmation"`
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	if strings.ToLower(strings.TrimSpace(req.Confirmation)) != deleteConfirmation {
		_ = c.Error(apperrors.Validation("confirmation", `type "delete" to confirm`))
		return
	}

	report, err := h.userService.Delete(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "deleted",
		"cleanup": report,
	})
}
