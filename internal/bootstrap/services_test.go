package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/config"
)

func TestBuildMetricsDisabledReturnsNil(t *testing.T) {
	client := buildMetrics(config.ObservabilityMetricsConfig{}, slog.Default())
	assert.Nil(t, client)
	// Nil clients are safe to emit against.
	client.Count("pipeline.events", 1, nil)
}

func TestBuildMetricsEnabled(t *testing.T) {
	client := buildMetrics(config.ObservabilityMetricsConfig{
		StatsdAddress: "127.0.0.1:8125",
	}, slog.Default())
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	assert.True(t, client.Enabled())
}

func TestBuildFailureNotifier(t *testing.T) {
	assert.Nil(t, buildFailureNotifier(config.ObservabilityNotificationsConfig{}, slog.Default()))
	assert.NotNil(t, buildFailureNotifier(config.ObservabilityNotificationsConfig{
		SlackWebhookURL: "https://hooks.slack.com/services/T0/B0/x",
	}, slog.Default()))
}

func TestRunServicesWithShutdownRequiresConfig(t *testing.T) {
	require.Error(t, RunServicesWithShutdown(nil))
	require.Error(t, RunServicesWithShutdown(&ServiceOrchestrationConfig{}))
}
