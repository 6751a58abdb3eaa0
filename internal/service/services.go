package service

import (
	"threaded_messaging/internal/config"
	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

type Services struct {
	Auth         AuthService
	User         UserService
	Message      MessageService
	Thread       ThreadService
	ReadState    ReadStateService
	Notification NotificationService
	Audit        AuditService
	RateLimit    RateLimitService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Store, log)
	threads := NewThreadService(repos.Store, log)

	services := &Services{
		Auth:         NewAuthService(repos.Store, cfg.JWT, log),
		User:         NewUserService(repos.Store, audit, log),
		Message:      NewMessageService(repos.Store, NewNotificationDispatcher(log), threads, audit, cfg.Message.MaxContentLength, log),
		Thread:       threads,
		ReadState:    NewReadStateService(repos.Store, cfg.Inbox.PageSize, log),
		Notification: NewNotificationService(repos.Store, log),
		Audit:        audit,
	}

	// rate limiting needs redis
	if repos.RateLimit != nil {
		services.RateLimit = NewRateLimitService(repos.RateLimit, log)
	} else {
		log.Warn("RateLimit repository is nil, rate limit service not initialized")
	}

	return services
}
