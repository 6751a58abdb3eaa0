package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	limit            int
	window           time.Duration
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, limit int, window time.Duration, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		limit:            limit,
		window:           window,
		log:              log,
	}
}

// Limit counts requests per authenticated user, or per client IP before
// authentication. A redis outage lets requests through.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := c.Get(ContextUserID); ok {
			key = fmt.Sprintf("user:%v", userID)
		}

		allowed, retryAfter, err := m.rateLimitService.Allow(c.Request.Context(), key, m.limit, m.window)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
