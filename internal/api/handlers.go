// Package api is the HTTP surface: a thin JSON layer over the container
// service, the registry, and the metrics service.
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"dockhand/internal/docker"
	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/internal/metrics"
	"dockhand/internal/registry"
)

// defaultGracePeriod is the docker stop/restart grace period when the
// request doesn't specify one.
const defaultGracePeriod = 10

// Envelope is the uniform response shape: success plus data, or an error
// body. Failures are always a structured result, never a bare fault.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries a structured failure to the client.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Handler holds the services the HTTP surface fans out to.
type Handler struct {
	containers *docker.Service
	registry   *registry.Registry
	metrics    *metrics.Service
	log        logger.Logger
}

// NewHandler wires up the HTTP handlers.
func NewHandler(containers *docker.Service, reg *registry.Registry, m *metrics.Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{containers: containers, registry: reg, metrics: m, log: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Success: true, Data: data}); err != nil {
		h.log.Error("encoding response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	body := &ErrorBody{Code: errors.ErrCommand, Message: err.Error()}
	var dhErr *errors.Error
	if stderrors.As(err, &dhErr) {
		body.Code = dhErr.Code
		body.Message = dhErr.Message
		body.Suggestion = dhErr.Suggestion
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(Envelope{Success: false, Error: body}); encErr != nil {
		h.log.Error("encoding error response: %v", encErr)
	}
}

// statusFor maps error codes to HTTP statuses. Upstream failures (the SSH
// channel, the metrics endpoint) are gateway errors, rejected commands are
// the client's problem.
func statusFor(err error) int {
	switch errors.Code(err) {
	case errors.ErrTransport, errors.ErrMetrics, errors.ErrParse:
		return http.StatusBadGateway
	case errors.ErrCommand:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Health answers liveness probes without touching the remote host.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListContainers enumerates containers.
// Query: include_stopped (default true), quick (default false).
func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	includeStopped := boolParam(r, "include_stopped", true)
	quick := boolParam(r, "quick", false)

	containers, skipped, err := h.containers.List(includeStopped, quick)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"containers": h.registry.Enrich(containers),
		"count":      len(containers),
		"skipped":    skipped,
	})
}

// GetContainer returns one container's full record.
func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	container, err := h.containers.Details(name)
	if err != nil {
		// An inspect rejection means the name doesn't exist
		if errors.IsCode(err, errors.ErrCommand) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, registry.Enriched{
		Container: *container,
		Service:   h.registry.MatchContainer(container),
	})
}

// StartContainer starts a container.
func (h *Handler) StartContainer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.containers.Start(name); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Container " + name + " started"})
}

// StopContainer stops a container. Query: timeout (grace period seconds).
func (h *Handler) StopContainer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.containers.Stop(name, intParam(r, "timeout", defaultGracePeriod)); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Container " + name + " stopped"})
}

// RestartContainer restarts a container. Query: timeout (grace period seconds).
func (h *Handler) RestartContainer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.containers.Restart(name, intParam(r, "timeout", defaultGracePeriod)); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Container " + name + " restarted"})
}

// GetLogs returns recent log output. Query: lines (default 100), since.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	out, err := h.containers.Logs(name, intParam(r, "lines", 100), r.URL.Query().Get("since"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"name": name, "logs": out})
}

// GetStats returns a resource sample for one container.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	stats, err := h.containers.Stats(name)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// bulkRequest is the POST body for bulk actions.
type bulkRequest struct {
	Action  string   `json:"action"`
	Names   []string `json:"names"`
	Timeout int      `json:"timeout"`
}

// BulkAction applies one action to many containers, returning per-item
// results. A partial failure is still a 200: the envelope data carries
// which items failed and why.
func (h *Handler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest,
			errors.WrapWithCode(err, errors.ErrCommand, "Bad bulk request body",
				`Expected {"action": "...", "names": [...]}`))
		return
	}
	if len(req.Names) == 0 {
		h.writeError(w, http.StatusBadRequest,
			errors.New(errors.ErrCommand, "Bulk request needs at least one name", ""))
		return
	}
	if req.Timeout <= 0 {
		req.Timeout = defaultGracePeriod
	}

	result, err := h.containers.Bulk(req.Action, req.Names, req.Timeout)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// PruneContainers removes stopped containers.
func (h *Handler) PruneContainers(w http.ResponseWriter, r *http.Request) {
	out, err := h.containers.Prune()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

// GetServices reports every managed service against the discovered
// containers. Services with no container are reported, not dropped.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	containers, _, err := h.containers.List(true, true)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.registry.Status(containers))
}

// GetSystemMetrics returns the host snapshot. Query: refresh=true bypasses
// the cache.
func (h *Handler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.metrics.GetSystemMetrics(!boolParam(r, "refresh", false))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// GetMetricsHistory returns retained snapshots. Query: hours (default 24).
func (h *Handler) GetMetricsHistory(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", 24)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hours":     hours,
		"snapshots": h.metrics.GetHistoricalMetrics(hours),
	})
}

// GetServiceHealth returns per-service probe verdicts. Query: refresh=true
// bypasses the cache.
func (h *Handler) GetServiceHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.metrics.GetServiceHealth(!boolParam(r, "refresh", false))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, health)
}

// GetAlerts returns active alerts from the metrics endpoint.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.metrics.Alerts()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

// GetEngineInfo returns the remote Docker engine's system info.
func (h *Handler) GetEngineInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.containers.EngineInfo()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// ClearCache discards cached metrics and health results so the next
// requests probe fresh. Diagnostic endpoint.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.metrics.ClearCache()
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
}

func boolParam(r *http.Request, name string, fallback bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
