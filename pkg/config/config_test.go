package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("MONGODB_CONNECT_TIMEOUT", "")
	t.Setenv("MONGODB_MAX_POOL_SIZE", "")

	cfg := LoadConfig("chat-service")

	assert.Equal(t, "chat-service", cfg.App.Name)
	assert.Equal(t, ":9200", cfg.Server.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.Database.MongoDB.ConnectTimeout)
	assert.Equal(t, uint64(100), cfg.Database.MongoDB.MaxPoolSize)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("MONGODB_CONNECT_TIMEOUT", "3s")
	t.Setenv("MONGODB_MAX_POOL_SIZE", "20")

	cfg := LoadConfig("chat-service")

	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.Database.MongoDB.ConnectTimeout)
	assert.Equal(t, uint64(20), cfg.Database.MongoDB.MaxPoolSize)
}

func TestLoadConfigBadDurationFallsBack(t *testing.T) {
	t.Setenv("MONGODB_CONNECT_TIMEOUT", "soon")

	cfg := LoadConfig("chat-service")

	assert.Equal(t, 10*time.Second, cfg.Database.MongoDB.ConnectTimeout)
}
