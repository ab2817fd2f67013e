package httpx

import (
	"log/slog"
	"net/http"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/data"
	"github.com/jobsift/jobsift/internal/status"
)

// RouterServices holds everything the gateway router needs.
type RouterServices struct {
	Publisher broker.Publisher
	Tracker   *status.Tracker
	// PushHub serves GET /ws; nil disables the push channel.
	PushHub http.Handler
	Jobs    *data.JobRepo
	Cache   *data.JobListCache

	KafkaBroker       string
	GoogleAPIKey      string
	CORSAllowedOrigin string
	Logger            *slog.Logger
}

// NewRouter wires the gateway endpoints onto a ServeMux and wraps it with
// the recover, logging, and CORS middleware.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pipeline := &PipelineHandlers{
		Publisher:    services.Publisher,
		Tracker:      services.Tracker,
		GoogleAPIKey: services.GoogleAPIKey,
		Logger:       logger,
	}
	jobs := &JobHandlers{
		Repo:   services.Jobs,
		Cache:  services.Cache,
		Logger: logger,
	}
	health := &HealthHandlers{
		Publisher:   services.Publisher,
		KafkaBroker: services.KafkaBroker,
		Logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger-job-pipeline", pipeline.TriggerJobPipeline)
	mux.HandleFunc("GET /jobs/{job_id}/status", pipeline.JobStatus)
	mux.HandleFunc("GET /data", jobs.ListData)
	mux.HandleFunc("PATCH /jobs/{job_id}/progress", jobs.UpdateProgress)
	mux.HandleFunc("DELETE /jobs/{job_id}", jobs.DeleteJob)
	mux.HandleFunc("GET /health", health.Health)
	if services.PushHub != nil {
		mux.Handle("GET /ws", services.PushHub)
	}

	var handler http.Handler = mux
	handler = CORS(services.CORSAllowedOrigin)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
