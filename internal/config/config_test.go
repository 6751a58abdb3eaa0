package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Inbox.PageSize)
	assert.Equal(t, 10000, cfg.Message.MaxContentLength)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("JWT_ACCESS_TTL", "30m")
	t.Setenv("INBOX_PAGE_SIZE", "20")
	t.Setenv("MESSAGE_MAX_CONTENT_LENGTH", "280")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 20, cfg.Inbox.PageSize)
	assert.Equal(t, 280, cfg.Message.MaxContentLength)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestValidateRequiresDSNForPostgres(t *testing.T) {
	cfg := &Config{
		Storage:   StorageConfig{Driver: StorageDriverPostgres},
		JWT:       JWTConfig{AccessSecret: "s"},
		Inbox:     InboxConfig{PageSize: 10},
		RateLimit: RateLimitConfig{Enabled: false},
	}
	assert.Error(t, cfg.validate())

	cfg.Storage.Driver = StorageDriverMemory
	assert.NoError(t, cfg.validate())
}
