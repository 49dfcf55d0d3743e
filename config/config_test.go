package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("MEDIA_BASE_URL", "https://cdn.example.com/media/")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5, cfg.Auth.MinPasswordLen)
	assert.Equal(t, "https://cdn.example.com/media", cfg.Media.BaseURL)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Empty(t, cfg.MQ.Backend)
}

func TestLoadConfigParsesTypedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "250ms")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.RefillInterval)
	assert.True(t, cfg.MQ.RabbitMQ.QueueDurable, "invalid bool falls back to default")
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}
