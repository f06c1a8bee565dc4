package rest

import (
	"context"
	"net/http"
	"time"
)

// pinger is implemented by the database pool and the notification client.
type pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is an optional component reported by /health. A failing
// non-critical dependency degrades the status without failing the probe.
type Dependency struct {
	Name     string
	Pinger   pinger
	Critical bool
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db      pinger
	deps    []Dependency
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db pinger, version string, deps ...Dependency) *HealthHandler {
	return &HealthHandler{db: db, deps: deps, version: version}
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. Pings DB: 200 if OK, 503 if not.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "down",
			Timestamp: time.Now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Health is the full health check: every component with its ping latency.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := make(map[string]CompStatus, len(h.deps)+1)
	overallStatus := "ok"

	all := append([]Dependency{{Name: "database", Pinger: h.db, Critical: true}}, h.deps...)
	for _, dep := range all {
		start := time.Now()
		err := dep.Pinger.Ping(ctx)
		latency := time.Since(start)

		if err != nil {
			components[dep.Name] = CompStatus{Status: "down"}
			switch {
			case dep.Critical:
				overallStatus = "down"
			case overallStatus == "ok":
				overallStatus = "degraded"
			}
			continue
		}
		components[dep.Name] = CompStatus{Status: "ok", Latency: latency.String()}
	}

	status := http.StatusOK
	if overallStatus == "down" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}
