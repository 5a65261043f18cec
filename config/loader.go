package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/siherrmann/schematic/core/pipeline"
	"github.com/siherrmann/schematic/helper"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, SCHEMATIC_SERVER_ADDRESS sets server.address
const EnvPrefix = "SCHEMATIC"

// Load reads the configuration in order of precedence:
// defaults, the YAML file at path if given, then SCHEMATIC_* environment variables.
// Database settings also honor the SCHEMATIC_DB_* variables of helper.NewDatabaseConfiguration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, helper.NewError("load .env", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if path != "" {
		if err := loadConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"database.host":     helper.EnvDatabaseHost,
		"database.port":     helper.EnvDatabasePort,
		"database.database": helper.EnvDatabaseName,
		"database.username": helper.EnvDatabaseUsername,
		"database.password": helper.EnvDatabasePassword,
		"database.schema":   helper.EnvDatabaseSchema,
		"database.sslmode":  helper.EnvDatabaseSSLMode,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, helper.NewError("bind "+env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, helper.NewError("unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile reads a YAML file, expanding ${VAR} and ${VAR:default} placeholders
func loadConfigFile(v *viper.Viper, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return helper.NewError(fmt.Sprintf("read config file %s", path), err)
	}

	if err := v.ReadConfig(strings.NewReader(expandEnv(string(content)))); err != nil {
		return helper.NewError(fmt.Sprintf("parse config file %s", path), err)
	}
	v.SetConfigFile(path)

	return nil
}

var placeholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv replaces ${VAR} and ${VAR:default}. Undefined variables without default are kept.
func expandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		submatch := placeholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// setDefaults registers every key so environment variables can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.database", "schematic")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("search.limit", 10)
	v.SetDefault("search.fuzzy_threshold", 0.85)
	v.SetDefault("search.parallel", false)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.mode", "release")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("redis.key_prefix", "schematic:embedding:")

	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.model", pipeline.DefaultEmbeddingModel)
	v.SetDefault("embedding.dim", pipeline.DefaultEmbeddingDim)

	v.SetDefault("logging.level", "info")
}

// MustLoad loads the configuration and panics on failure
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
