package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskd/internal/config"
)

// loadAppConfig loads and validates the application configuration.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"cache_backend", cfg.Cache.Backend,
		"queue_backend", cfg.Queue.Backend)

	return cfg, nil
}
