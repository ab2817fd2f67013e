// Package bootstrap wires configuration, logging, storage, broker clients,
// and the per-role runtimes, and owns process lifecycle: startup order,
// signal handling, and graceful shutdown.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jobsift/jobsift/config"
)

// logDir is where prod processes write their log stream.
const logDir = "/app/logs"

// InitLogger initializes the structured logger for one service process. In
// prod the stream goes to /app/logs/<service>.log, falling back to stdout if
// the file cannot be opened; in dev it always goes to stdout.
func InitLogger(cfg *config.AppConfig, service string) *slog.Logger {
	var w io.Writer = os.Stdout
	level := slog.LevelInfo
	if cfg != nil && cfg.IsProd() {
		level = slog.LevelWarn
		if service != "" {
			path := filepath.Join(logDir, service+".log")
			if f, err := openLogFile(path); err != nil {
				fmt.Fprintf(os.Stderr, "falling back to stdout, cannot open %s: %v\n", path, err)
			} else {
				w = f
			}
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// LoadConfig loads configuration from environment variables, reading a .env
// file first when one exists (development).
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// EnabledServiceNames returns the names of the enabled services, for startup
// logging.
func EnabledServiceNames(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}
