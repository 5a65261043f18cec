package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 10, cfg.Search.Limit)
		assert.Equal(t, 0.85, cfg.Search.FuzzyThreshold)
		assert.False(t, cfg.Search.Parallel)
		assert.Equal(t, ":8080", cfg.Server.Address)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
		assert.Equal(t, 384, cfg.Embedding.Dim)
		assert.Equal(t, "5432", cfg.Database.Port)
		assert.Equal(t, "public", cfg.Database.Schema)
		assert.Equal(t, model.DefaultSearchConfig(), cfg.Search.Model())
	})

	t.Run("File with placeholders", func(t *testing.T) {
		t.Setenv("TEST_REDIS_HOST", "cache.internal")
		path := writeConfig(t, `
search:
  limit: 25
  parallel: true
server:
  address: "127.0.0.1:9090"
redis:
  enabled: true
  host: ${TEST_REDIS_HOST}
  port: ${TEST_REDIS_PORT:6380}
  ttl: 1h
logging:
  level: debug
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Search.Limit)
		assert.True(t, cfg.Search.Parallel)
		assert.Equal(t, 0.85, cfg.Search.FuzzyThreshold, "Expected unset keys to keep their default")
		assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr())
		assert.Equal(t, time.Hour, cfg.Redis.TTL)
		assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "search:\n  limit: 25\n")
		t.Setenv("SCHEMATIC_SEARCH_LIMIT", "7")
		t.Setenv("SCHEMATIC_SERVER_ADDRESS", ":7070")
		t.Setenv(helper.EnvDatabaseHost, "db.internal")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Search.Limit)
		assert.Equal(t, ":7070", cfg.Server.Address)
		assert.Equal(t, "db.internal", cfg.Database.Host)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("Invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "search:\n  fuzzy_threshold: 1.5\n"))
		assert.ErrorIs(t, err, helper.ErrInvalidInput)

		_, err = Load(writeConfig(t, "embedding:\n  dim: 0\n"))
		assert.ErrorIs(t, err, helper.ErrInvalidInput)

		_, err = Load(writeConfig(t, "search:\n  limit: -1\n"))
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "value")

	assert.Equal(t, "a value b", expandEnv("a ${TEST_EXPAND_SET} b"))
	assert.Equal(t, "fallback", expandEnv("${TEST_EXPAND_UNSET:fallback}"))
	assert.Equal(t, "", expandEnv("${TEST_EXPAND_UNSET:}"))
	assert.Equal(t, "${TEST_EXPAND_UNSET}", expandEnv("${TEST_EXPAND_UNSET}"))
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, LoggingConfig{}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LoggingConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LoggingConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LoggingConfig{Level: "verbose"}.SlogLevel())
}
