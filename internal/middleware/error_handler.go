package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Internal failures are logged and hidden from the client.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := errors.HTTPStatusFromError(err.Err)

		message := err.Error()
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err.Err, "path", c.FullPath(), "method", c.Request.Method)
			message = "Internal server error"
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
