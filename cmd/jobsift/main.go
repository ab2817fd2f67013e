// Command jobsift runs one or more roles of the job-ingestion pipeline in a
// single process. The SERVICES environment variable selects the roles:
// gateway, scraper, loader, or any comma-separated combination.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/bootstrap"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	logger := bootstrap.InitLogger(&cfg, logName(&cfg))
	logger.Info("jobsift starting",
		"environment", cfg.Environment,
		"services", bootstrap.EnabledServiceNames(&cfg),
		"kafka_broker", cfg.Kafka.BrokerURL,
	)

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config: &cfg,
		Logger: logger,
	})
}

// logName picks the prod log file name: the role name when the process runs
// a single role, "jobsift" for combined deployments.
func logName(cfg *config.AppConfig) string {
	names := bootstrap.EnabledServiceNames(cfg)
	if len(names) == 1 {
		return names[0]
	}
	return "jobsift"
}
