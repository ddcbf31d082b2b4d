package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/Abdullah0x0/dreamdirector/internal/config"
)

const ServiceName = "dreamdirector"

// Setup installs the process-wide slog logger: JSON in production, text
// elsewhere. Every line carries the service and environment.
func Setup(cfg *config.Config) *slog.Logger {
	return setup(cfg, os.Stdout)
}

func setup(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogLevel <= slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"env", cfg.Environment,
	)
	slog.SetDefault(logger)
	return logger
}

// Component scopes a logger to one subsystem (orchestrator, music, http).
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithAdventure tags log lines with the active adventure.
func WithAdventure(logger *slog.Logger, adventureID string) *slog.Logger {
	return logger.With("adventure_id", adventureID)
}
