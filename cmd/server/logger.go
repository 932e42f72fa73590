package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/taskd/internal/config"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/platform/telemetry"
)

// setupAppLogger configures the process logger. When telemetry is enabled the
// OpenTelemetry providers are installed first and log records are also
// bridged to them; the returned provider must then be shut down on exit.
func setupAppLogger(ctx context.Context, cfg *config.Config) (*slog.Logger, *telemetry.Provider, error) {
	loggerConfig := logger.LoggerConfig{Level: cfg.Server.LogLevel}

	var provider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		p, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Writer:      os.Stderr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up telemetry: %w", err)
		}
		provider = p
		loggerConfig.Handlers = append(loggerConfig.Handlers, p.LogHandler())
	}

	l, err := logger.Setup(loggerConfig)
	if err != nil {
		if provider != nil {
			_ = provider.Shutdown(ctx)
		}
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return l, provider, nil
}
