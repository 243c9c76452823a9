package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Workflow    WorkflowConfig  `mapstructure:"workflow"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "postgres" or "sqlite"
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	ReminderTTL time.Duration `mapstructure:"reminder_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// WorkflowConfig holds approval policy and background job settings.
type WorkflowConfig struct {
	AllowSeniorSkipLevel bool                `mapstructure:"allow_senior_skip_level"`
	ReminderInterval     time.Duration       `mapstructure:"reminder_interval"`
	NotificationBreaker  CircuitBreakerConfig `mapstructure:"notification_breaker"`
}

// CircuitBreakerConfig configures the breaker around notification delivery.
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}
