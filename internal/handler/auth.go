package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		_ = c.Error(bindError(err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "username", req.Username)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid login request", "error", err)
		_ = c.Error(bindError(err))
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "login", req.Login)
		_ = c.Error(err)
		return
	}

	h.log.Info("User logged in successfully", "user_id", response.User.ID)
	c.JSON(http.StatusOK, response)
}
