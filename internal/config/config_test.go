package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "task_stream", cfg.Queue.Stream)
	assert.Equal(t, "task_workers", cfg.Queue.ConsumerGroup)
	assert.Equal(t, 2*time.Second, cfg.Queue.BlockTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Queue.ClaimMinIdle)
	assert.Equal(t, 1*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 1*time.Second, cfg.Worker.ErrorBackoff)
	assert.Equal(t, 1*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvAliases(t *testing.T) {
	viper.Reset()
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/taskdb")
	t.Setenv("SECRET_KEY", "testing-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "postgres://u:p@db:5432/taskdb", cfg.Database.URL)
	assert.Equal(t, "testing-secret", cfg.Auth.JWTSecret)
}

func TestLoad_RedisHostWithoutPort(t *testing.T) {
	viper.Reset()
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoad_PrefixedEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("JOBRUNNER_LOGLEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
}
