// Package api exposes tailing sessions over HTTP: websocket streams for file
// content and the process log, plus status and metrics endpoints.
package api

import (
	"net/http"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/stream"
	"github.com/adevaykin/tailor/internal/tailor"
)

type Config struct {
	Tailor         *tailor.Tailor
	Feeds          *stream.Feeds
	Logger         *logging.Logger
	Metrics        *metrics.Registry
	AuthToken      string
	AllowedOrigins []string
}

func RegisterRoutes(mux *http.ServeMux, config Config) {
	registry := config.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	logger := config.Logger

	mux.Handle("/ws/tail", loggingMiddleware(logger, &TailHandler{
		Feeds:          config.Feeds,
		Logger:         logger,
		AuthToken:      config.AuthToken,
		AllowedOrigins: config.AllowedOrigins,
	}))
	mux.Handle("/ws/logs", loggingMiddleware(logger, &LogsHandler{
		Logger:         logger,
		AuthToken:      config.AuthToken,
		AllowedOrigins: config.AllowedOrigins,
	}))

	status := &StatusHandler{Tailor: config.Tailor, Feeds: config.Feeds, Metrics: registry}
	mux.Handle("/api/status", loggingMiddleware(logger, restHandler(config.AuthToken, status.handle)))
	mux.Handle("/metrics", loggingMiddleware(logger, restHandler(config.AuthToken, metricsHandler(registry))))
}
