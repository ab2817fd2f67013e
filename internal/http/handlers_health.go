package httpx

import (
	"log/slog"
	"net/http"

	"github.com/jobsift/jobsift/internal/broker"
)

// HealthHandlers serves the readiness endpoint.
type HealthHandlers struct {
	Publisher   broker.Publisher
	KafkaBroker string
	Logger      *slog.Logger
}

// Health reports gateway liveness plus the current broker connectivity.
// A broker outage degrades kafka_connection to "error" but never fails the
// endpoint itself.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	kafkaConnection := "connected"
	if err := h.Publisher.Ping(r.Context()); err != nil {
		h.Logger.WarnContext(r.Context(), "broker ping failed", "error", err)
		kafkaConnection = "error"
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":           "healthy",
		"kafka_connection": kafkaConnection,
		"kafka_broker":     h.KafkaBroker,
	})
}
