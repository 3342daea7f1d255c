package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported ordinance cache backends.
const (
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Fetch     FetchConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	MigrationsPath string
	PoolMin        int
	PoolMax        int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// EngineConfig holds analysis pipeline configuration.
type EngineConfig struct {
	ManifestPath  string
	ParseMemoSize int
}

// CacheConfig holds ordinance cache configuration. The TTL applies to every
// jurisdiction in the deployment.
type CacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	TTL           time.Duration
	RedisDB       int
}

// FetchConfig holds ordinance fetcher configuration.
type FetchConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// TelemetryConfig holds observability sink configuration.
type TelemetryConfig struct {
	BufferSize int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "zoning")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("MANIFEST_PATH", "config/jurisdictions.yaml")
	v.SetDefault("PARSE_MEMO_SIZE", 128)
	v.SetDefault("CACHE_BACKEND", CacheBackendPostgres)
	v.SetDefault("CACHE_TTL", "168h")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "zoning:ordinance:")
	v.SetDefault("FETCH_TIMEOUT", "5s")
	v.SetDefault("FETCH_MAX_BODY_BYTES", 10<<20)
	v.SetDefault("USER_AGENT", "zoning-engine/0.1 (+ordinance-fetcher)")
	v.SetDefault("TELEMETRY_BUFFER", 1024)

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			Name:           v.GetString("DB_NAME"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
			PoolMin:        v.GetInt("DB_POOL_MIN"),
			PoolMax:        v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Engine: EngineConfig{
			ManifestPath:  v.GetString("MANIFEST_PATH"),
			ParseMemoSize: v.GetInt("PARSE_MEMO_SIZE"),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(v.GetString("CACHE_BACKEND")),
			TTL:           v.GetDuration("CACHE_TTL"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RedisPrefix:   v.GetString("REDIS_PREFIX"),
		},
		Fetch: FetchConfig{
			Timeout:      v.GetDuration("FETCH_TIMEOUT"),
			MaxBodyBytes: v.GetInt64("FETCH_MAX_BODY_BYTES"),
			UserAgent:    v.GetString("USER_AGENT"),
		},
		Telemetry: TelemetryConfig{
			BufferSize: v.GetInt("TELEMETRY_BUFFER"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Engine.ManifestPath == "" {
		return fmt.Errorf("MANIFEST_PATH is required")
	}
	if c.Engine.ParseMemoSize < 1 {
		return fmt.Errorf("PARSE_MEMO_SIZE must be at least 1")
	}

	switch c.Cache.Backend {
	case CacheBackendPostgres, CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of postgres, redis, memory, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.Fetch.MaxBodyBytes < 1 {
		return fmt.Errorf("FETCH_MAX_BODY_BYTES must be at least 1")
	}

	if c.Telemetry.BufferSize < 1 {
		return fmt.Errorf("TELEMETRY_BUFFER must be at least 1")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
