package config

import "strings"

// ObservabilityConfig groups metrics and notification settings.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// ObservabilityMetricsConfig contains StatsD metrics configuration.
type ObservabilityMetricsConfig struct {
	// StatsdAddress is the UDP address of a StatsD-compatible sink.
	// Empty disables metrics emission.
	StatsdAddress string `env:"STATSD_ADDR" envDefault:""`
}

// IsEnabled reports whether metrics emission is configured.
func (m *ObservabilityMetricsConfig) IsEnabled() bool {
	return strings.TrimSpace(m.StatsdAddress) != ""
}

// ObservabilityNotificationsConfig contains failure notification settings.
// The gateway fans consumed job_failed events out to these sinks in
// addition to updating the status map.
type ObservabilityNotificationsConfig struct {
	// SlackWebhookURL enables Slack notifications when non-empty.
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL" envDefault:""`
}

// Sanitize applies guardrails to observability configuration values.
func (o *ObservabilityConfig) Sanitize() {
	o.Metrics.StatsdAddress = strings.TrimSpace(o.Metrics.StatsdAddress)
	o.Notifications.SlackWebhookURL = strings.TrimSpace(o.Notifications.SlackWebhookURL)
}
