package handlers

import (
	"io"
	"net/http"
	"runtime"
	"time"

	"bandwidth-proxy/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDraining = "draining"

	// healthBanner is the plain-text body browser extensions probe for.
	healthBanner = "bandwidth-hero-proxy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	AVIF    bool   `json:"avif"`
	// MemoryPaused is true while new transcodes wait for memory to drop
	MemoryPaused bool `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// Health answers the extension's connectivity probe with a fixed string.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := io.WriteString(w, healthBanner); err != nil {
			h.logger.Debug("failed to write health response: %v", err)
		}
	}
}

// HealthCheck returns the detailed health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		AVIF:         h.avif,
		MemoryPaused: h.memory != nil && h.memory.IsPaused(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		response.Status = statusDraining
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	h.writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		h.writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only while upstream fetches are being accepted
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ready() {
		w.WriteHeader(http.StatusOK)
		h.writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		h.writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}

func (h *Handlers) ready() bool {
	return h.readiness == nil || !h.readiness.Closed()
}
