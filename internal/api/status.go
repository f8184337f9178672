package api

import (
	"net/http"

	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/stream"
	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/version"
)

// SessionSummary is one running session in a Status response.
type SessionSummary struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Status is the GET /api/status payload.
type Status struct {
	Version  version.VersionInfo `json:"version"`
	Sessions []SessionSummary    `json:"sessions"`
	Feeds    []string            `json:"feeds"`
	Metrics  metrics.Snapshot    `json:"metrics"`
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	Tailor  *tailor.Tailor
	Feeds   *stream.Feeds
	Metrics *metrics.Registry
}

func (h *StatusHandler) handle(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, http.MethodGet)
	}
	response := Status{
		Version:  version.GetVersionInfo(),
		Sessions: []SessionSummary{},
		Feeds:    []string{},
		Metrics:  h.Metrics.Snapshot(),
	}
	if h.Tailor != nil {
		for _, session := range h.Tailor.Sessions() {
			response.Sessions = append(response.Sessions, SessionSummary{
				ID:   int64(session.ID),
				Path: session.Path,
				Kind: session.Kind.String(),
			})
		}
	}
	if h.Feeds != nil {
		response.Feeds = append(response.Feeds, h.Feeds.Paths()...)
	}
	writeJSON(w, http.StatusOK, response)
	return nil
}

// metricsHandler serves GET /metrics in the Prometheus text format.
func metricsHandler(registry *metrics.Registry) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		if r.Method != http.MethodGet {
			return methodNotAllowed(w, http.MethodGet)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := registry.WritePrometheus(w); err != nil {
			return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
		}
		return nil
	}
}
