package repository

import (
	"github.com/redis/go-redis/v9"

	"threaded_messaging/pkg/logger"
)

type Repositories struct {
	Store     Store
	RateLimit RateLimitRepository
}

// NewRepositories bundles the entity store with the redis-backed rate limit
// repository. A nil redis client leaves RateLimit unset.
func NewRepositories(store Store, client *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{Store: store}

	if client != nil {
		repos.RateLimit = NewRateLimitRepository(client, log)
		log.Info("Rate limit repository initialized")
	} else {
		log.Warn("Redis client is nil, rate limiting disabled")
	}

	return repos
}
