package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"fireshare/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

const healthQueryTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Scanning   bool   `json:"scanning"`
	LastScan   string `json:"lastScan,omitempty"`
	Database   string `json:"database"`
	Error      string `json:"error,omitempty"`
	GoVersion  string `json:"goVersion"`
	Goroutines int    `json:"goroutines"`
}

// HealthCheck reports overall health. The catalog must be queryable.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:     statusHealthy,
		Version:    startup.Version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Scanning:   h.scans.IsScanning(),
		Database:   "ok",
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	}
	if last := h.scans.LastScanTime(); !last.IsZero() {
		response.LastScan = last.Format(time.RFC3339)
	}

	code := http.StatusOK
	if err := h.pingLibrary(r.Context()); err != nil {
		response.Status = statusDegraded
		response.Database = "unavailable"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, response)
}

// LivenessCheck returns 200 while the process is serving.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONStatus(w, http.StatusOK, "alive")
}

// ReadinessCheck returns 200 once the catalog can be queried.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingLibrary(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}

func (h *Handlers) pingLibrary(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthQueryTimeout)
	defer cancel()
	_, err := h.library.LibraryStats(ctx)
	return err
}
