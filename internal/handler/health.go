package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/config"
)

type HealthHandler struct {
	storage string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{storage: cfg.Storage.Driver}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "threaded-messaging",
		"storage": h.storage,
	})
}
