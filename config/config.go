// Package config loads the settings of the schematic server and CLI
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// Config is the root of the configuration
type Config struct {
	Database  helper.DatabaseConfiguration `yaml:"database" mapstructure:"database"`
	Search    SearchConfig                 `yaml:"search" mapstructure:"search"`
	Server    ServerConfig                 `yaml:"server" mapstructure:"server"`
	Redis     RedisConfig                  `yaml:"redis" mapstructure:"redis"`
	Embedding EmbeddingConfig              `yaml:"embedding" mapstructure:"embedding"`
	Logging   LoggingConfig                `yaml:"logging" mapstructure:"logging"`
}

// SearchConfig holds the search defaults used when a request leaves them out
type SearchConfig struct {
	Limit          int     `yaml:"limit" mapstructure:"limit"`
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	Parallel       bool    `yaml:"parallel" mapstructure:"parallel"`
}

// Model converts the defaults into a search configuration
func (c SearchConfig) Model() model.SearchConfig {
	return model.SearchConfig{
		Limit:          c.Limit,
		FuzzyThreshold: c.FuzzyThreshold,
		Parallel:       c.Parallel,
	}
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Address         string        `yaml:"address" mapstructure:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// debug or release
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// RedisConfig configures the query embedding cache
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmbeddingConfig selects the embedding model
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Model   string `yaml:"model" mapstructure:"model"`
	Dim     int    `yaml:"dim" mapstructure:"dim"`
}

// LoggingConfig configures the pretty logger
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// SlogLevel parses the level name, unknown names log at info
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Validate checks the configuration and fills the database defaults
func (c *Config) Validate() error {
	if c.Search.Limit < 0 {
		return helper.NewInvalidInputError("search limit %d is negative", c.Search.Limit)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		return helper.NewInvalidInputError("fuzzy threshold %v is outside [0, 1]", c.Search.FuzzyThreshold)
	}
	if c.Embedding.Dim <= 0 {
		return helper.NewInvalidInputError("embedding dimension %d must be positive", c.Embedding.Dim)
	}
	if c.Server.Address == "" {
		return helper.NewInvalidInputError("server address is empty")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return helper.NewInvalidInputError("redis host is empty")
	}
	return c.Database.Validate()
}
