package config

import "strings"

// LoaderConfig contains loader worker configuration.
type LoaderConfig struct {
	// DataDir is where the scraper's per-job result files are read from.
	// It must match the scraper's DATA_DIR in deployments that share a volume.
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`
}

// Sanitize applies guardrails to loader configuration values.
func (l *LoaderConfig) Sanitize() {
	l.DataDir = strings.TrimSpace(l.DataDir)
	if l.DataDir == "" {
		l.DataDir = "/app/data"
	}
}
