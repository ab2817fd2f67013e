package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const httpShutdownTimeout = 10 * time.Second

// startServer starts the gateway HTTP server in the background and returns
// it for shutdown.
func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	if addr == "" {
		addr = ":8000"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// shutdownServer drains in-flight requests with a bounded timeout.
func shutdownServer(server *http.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
		return
	}
	logger.Info("HTTP server stopped")
}
