package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/middleware"
	"threaded_messaging/pkg/logger"
)

// NewRouter builds the engine. rateLimit may be nil when rate limiting is
// disabled.
func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:    []string{"Origin", "Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if rateLimit == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{rateLimit.Limit(), h}
	}

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", limited(handlers.Auth.Register)...)
			public.POST("/login", limited(handlers.Auth.Login)...)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			users := protected.Group("/users")
			{
				users.GET("/me", handlers.User.GetMe)
				users.GET("/me/summary", handlers.User.Summary)
				users.DELETE("/me", limited(handlers.User.DeleteMe)...)
			}

			messages := protected.Group("/messages")
			{
				messages.POST("", limited(handlers.Message.Send)...)
				messages.GET("/sent", handlers.Message.Sent)
				messages.GET("/received", handlers.Message.Received)
				messages.GET("/preview", handlers.Message.Preview)
				messages.GET("/:id", handlers.Message.Get)
				messages.PUT("/:id", limited(handlers.Message.Edit)...)
				messages.DELETE("/:id", limited(handlers.Message.Delete)...)
				messages.GET("/:id/history", handlers.Message.History)
				messages.POST("/:id/replies", limited(handlers.Message.Reply)...)
				messages.POST("/:id/read", handlers.Message.MarkRead)
				messages.POST("/:id/unread", handlers.Message.MarkUnread)
			}

			conversations := protected.Group("/conversations")
			{
				conversations.GET("", handlers.Conversation.List)
				conversations.GET("/:id", handlers.Conversation.Get)
				conversations.GET("/:id/tree", handlers.Conversation.Tree)
			}

			protected.GET("/inbox", handlers.Inbox.Inbox)

			unread := protected.Group("/unread")
			{
				unread.GET("", handlers.Inbox.Unread)
				unread.GET("/count", handlers.Inbox.UnreadCounts)
				unread.GET("/threads", handlers.Inbox.UnreadThreads)
				unread.GET("/from/:username", handlers.Inbox.UnreadFrom)
				unread.POST("/mark-all-read", handlers.Inbox.MarkAllRead)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handlers.Notification.List)
				notifications.POST("/:id/read", handlers.Notification.MarkRead)
			}
		}
	}

	return router
}
