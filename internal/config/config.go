package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker" validate:"required"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Backend names accepted by the selectable components.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// RateLimitPerMinute caps requests per client IP in a one-minute window.
	// Zero disables rate limiting.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains the connection settings shared by the Redis cache,
// queue and rate limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	Issuer               string `mapstructure:"issuer"`
}

// CacheConfig selects the derived cache backend and its TTLs.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend" validate:"required,oneof=redis memory"`
	FindOneTTL time.Duration `mapstructure:"find_one_ttl" validate:"gt=0"`
	FindAllTTL time.Duration `mapstructure:"find_all_ttl" validate:"gt=0"`
	StatsTTL   time.Duration `mapstructure:"stats_ttl" validate:"gt=0"`
}

// QueueConfig selects the job queue backend and its retry policy.
type QueueConfig struct {
	Backend     string        `mapstructure:"backend" validate:"required,oneof=redis memory"`
	Name        string        `mapstructure:"name" validate:"required"`
	Capacity    int           `mapstructure:"capacity" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
	BaseBackoff time.Duration `mapstructure:"base_backoff" validate:"gt=0"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" validate:"gtefield=BaseBackoff"`
}

// WorkerConfig sizes the status-update worker pool.
type WorkerConfig struct {
	Count       int           `mapstructure:"count" validate:"gt=0"`
	PollBackoff time.Duration `mapstructure:"poll_backoff" validate:"gt=0"`

	// BatchConcurrency bounds concurrent ids within one batch request.
	BatchConcurrency int `mapstructure:"batch_concurrency" validate:"gt=0"`
}

// SweeperConfig controls the periodic overdue sweep.
type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval" validate:"gt=0"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// TelemetryConfig toggles the OpenTelemetry stdout exporters.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
}
