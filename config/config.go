package config

import "strings"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - services.go: Service mode configuration
//   - kafka.go: Broker configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - scraper.go: Scraper worker configuration
//   - loader.go: Loader worker configuration
//   - observability.go: Metrics and notification configuration
type AppConfig struct {
	// Environment selects runtime behavior ("dev" or "prod").
	// In prod, components log to /app/logs/<name>.log; in dev, to stdout.
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`

	// Services is the comma-delimited list of service modes to run
	// in this process (gateway, scraper, loader).
	Services string `env:"SERVICES" envDefault:"gateway"`

	// Kafka broker configuration
	Kafka KafkaConfig

	// Database and cache configuration
	Database DBConfig
	Cache    CacheConfig

	// HTTP server configuration (gateway mode)
	HTTP HTTPConfig

	// Worker configuration
	Scraper ScraperConfig
	Loader  LoaderConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment != "prod" {
		c.Environment = "dev"
	}

	c.Kafka.Sanitize()
	c.HTTP.Sanitize()
	c.Scraper.Sanitize()
	c.Loader.Sanitize()
	c.Observability.Sanitize()
}

// IsProd reports whether the process runs with production behavior.
func (c *AppConfig) IsProd() bool {
	return c.Environment == "prod"
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}
