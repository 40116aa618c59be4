package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Scheduling SchedulingConfig
	RateLimit  RateLimitConfig
	Telemetry  TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	StaticDir   string // optional UI directory served at "/"
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings.
// When disabled, sessions and the anchor cache live in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// CacheConfig holds TTLs for cached state
type CacheConfig struct {
	Enabled    bool
	SessionTTL time.Duration
	AnchorTTL  time.Duration
}

// SchedulingConfig holds takt settings
type SchedulingConfig struct {
	DefaultTaktSeconds int
	LinesFile          string
	Lines              *LineTable
}

// RateLimitConfig holds request limits (per minute)
type RateLimitConfig struct {
	Enabled     bool
	GlobalLimit int64
	UserLimit   int64
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("MPAS_APP_PORT", 3010),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			StaticDir:   getEnv("STATIC_DIR", ""),
		},
		Database: DatabaseConfig{
			Host:        getEnv("MPAS_DB_HOST", "localhost"),
			Port:        getEnvInt("MPAS_DB_PORT", 5432),
			Database:    getEnv("MPAS_DB_NAME", "mpas"),
			User:        getEnv("MPAS_DB_USER", "mpas"),
			Password:    getEnv("MPAS_DB_PASS", "mpas"),
			SSLMode:     getEnv("MPAS_DB_SSLMODE", "disable"),
			MaxConns:    getEnvInt("MPAS_DB_MAX_CONNS", 20),
			MinConns:    getEnvInt("MPAS_DB_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("MPAS_DB_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("MPAS_DB_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			SessionTTL: getEnvDuration("SESSION_TTL", 8*time.Hour),
			AnchorTTL:  getEnvDuration("ANCHOR_CACHE_TTL", 30*time.Second),
		},
		Scheduling: SchedulingConfig{
			DefaultTaktSeconds: getEnvInt("DEFAULT_TAKT_SECONDS", 240),
			LinesFile:          getEnv("LINES_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvBool("RATE_LIMIT_ENABLED", false),
			GlobalLimit: int64(getEnvInt("RATE_LIMIT_GLOBAL", 600)),
			UserLimit:   int64(getEnvInt("RATE_LIMIT_USER", 120)),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lines, err := LoadLines(cfg.Scheduling.LinesFile, cfg.Scheduling.DefaultTaktSeconds)
	if err != nil {
		return nil, err
	}
	cfg.Scheduling.Lines = lines

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Scheduling.DefaultTaktSeconds <= 0 {
		return fmt.Errorf("invalid default takt: %d", c.Scheduling.DefaultTaktSeconds)
	}

	if c.Cache.SessionTTL <= 0 {
		return fmt.Errorf("invalid session ttl: %s", c.Cache.SessionTTL)
	}

	// 0 turns the anchor cache off
	if c.Cache.AnchorTTL < 0 {
		return fmt.Errorf("invalid anchor cache ttl: %s", c.Cache.AnchorTTL)
	}

	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("rate limiting requires redis")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
