package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Document store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Port     string
	LogLevel string

	// Document store
	StoreBackend    string
	DatabaseURL     string
	ShardConfigPath string
	NumShards       int
	QueryTimeout    time.Duration
	RedisURL        string
	SQLitePath      string

	// Store circuit breaker
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	JWTSecret     string
	AutosaveDelay time.Duration
}

// Load reads the environment, after applying a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StoreBackend:        getEnv("STORE_BACKEND", BackendMemory),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ShardConfigPath:     getEnv("SHARD_CONFIG_PATH", ""),
		NumShards:           getEnvInt("NUM_SHARDS", 16),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath:          getEnv("SQLITE_PATH", "sheetspace.db"),
		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		JWTSecret:           getEnvRequired("JWT_SECRET"),
		AutosaveDelay:       getEnvDuration("AUTOSAVE_DELAY", 500*time.Millisecond),
	}
}

// Validate checks the settings the selected backend depends on.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" && c.ShardConfigPath == "" {
			return errors.New("postgres backend needs DATABASE_URL or SHARD_CONFIG_PATH")
		}
		if c.NumShards <= 0 {
			return fmt.Errorf("NUM_SHARDS must be positive, got %d", c.NumShards)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis backend needs REDIS_URL")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite backend needs SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.BreakerMaxFailures <= 0 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be positive, got %d", c.BreakerMaxFailures)
	}
	return nil
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
