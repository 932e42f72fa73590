package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKD_SERVER_PORT.
const EnvPrefix = "TASKD"

// defaults are applied before any file or environment value.
var defaults = map[string]any{
	"server.port":                  8080,
	"server.log_level":             "info",
	"server.read_timeout":          15 * time.Second,
	"server.write_timeout":         15 * time.Second,
	"server.shutdown_timeout":      30 * time.Second,
	"server.rate_limit_per_minute": 100,

	"database.driver":            BackendPostgres,
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": 5 * time.Minute,
	"database.auto_migrate":      true,

	"redis.addr":     "localhost:6379",
	"redis.password": "",
	"redis.db":       0,

	"auth.token_lifetime_minutes": 60,
	"auth.issuer":                 "taskd",

	"cache.backend":      BackendRedis,
	"cache.find_one_ttl": 120 * time.Second,
	"cache.find_all_ttl": 60 * time.Second,
	"cache.stats_ttl":    30 * time.Second,

	"queue.backend":      BackendRedis,
	"queue.name":         "task-queue",
	"queue.capacity":     1024,
	"queue.max_attempts": 5,
	"queue.base_backoff": time.Second,
	"queue.max_backoff":  time.Minute,

	"worker.count":             4,
	"worker.poll_backoff":      time.Second,
	"worker.batch_concurrency": 8,

	"sweeper.enabled":      true,
	"sweeper.interval":     time.Hour,
	"sweeper.run_on_start": false,

	"telemetry.enabled":      false,
	"telemetry.service_name": "taskd",
}

// keys without a default still need an explicit env binding so that
// Unmarshal sees them.
var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
}

// Load configuration from an optional .env file, an optional config.yaml and
// environment variables. Environment variables take precedence over values
// from config files. Returns a populated Config struct or an error if
// loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// UsesRedis reports whether any configured component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Queue.Backend == BackendRedis
}
