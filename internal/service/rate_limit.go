package service

import (
	"context"
	"time"

	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

type RateLimitService interface {
	// Allow counts one request for key and reports whether it is within
	// limit together with the time until the window resets.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	allowed, retryAfter, err := s.rateLimitRepo.Allow(ctx, key, limit, window)
	if err != nil {
		return false, 0, err
	}
	if !allowed {
		s.log.Warn("Rate limit exceeded", "key", key, "limit", limit)
	}
	return allowed, retryAfter, nil
}
