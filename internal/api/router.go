package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"dockhand/internal/logger"
)

// NewRouter builds the route table over the given handler.
func NewRouter(h *Handler, log logger.Logger) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint (no middleware, no remote round-trips)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/containers", h.ListContainers).Methods(http.MethodGet)
	api.HandleFunc("/containers/bulk", h.BulkAction).Methods(http.MethodPost)
	api.HandleFunc("/containers/prune", h.PruneContainers).Methods(http.MethodPost)
	api.HandleFunc("/containers/{name}", h.GetContainer).Methods(http.MethodGet)
	api.HandleFunc("/containers/{name}/start", h.StartContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{name}/stop", h.StopContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{name}/restart", h.RestartContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{name}/logs", h.GetLogs).Methods(http.MethodGet)
	api.HandleFunc("/containers/{name}/stats", h.GetStats).Methods(http.MethodGet)

	api.HandleFunc("/services", h.GetServices).Methods(http.MethodGet)
	api.HandleFunc("/services/health", h.GetServiceHealth).Methods(http.MethodGet)

	api.HandleFunc("/system/metrics", h.GetSystemMetrics).Methods(http.MethodGet)
	api.HandleFunc("/system/metrics/history", h.GetMetricsHistory).Methods(http.MethodGet)
	api.HandleFunc("/system/alerts", h.GetAlerts).Methods(http.MethodGet)
	api.HandleFunc("/system/info", h.GetEngineInfo).Methods(http.MethodGet)
	api.HandleFunc("/system/cache/clear", h.ClearCache).Methods(http.MethodPost)

	api.Use(loggingMiddleware(log))
	api.Use(recoveryMiddleware(log))

	return r
}
