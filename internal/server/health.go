package server

import (
	"net/http"
	"time"

	"github.com/ferneysalazar/contractorstest-gmail/internal/config"
)

// Health status constants for health check responses.
const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
)

// HealthResponse reports process status and which required configuration
// values are present. Values themselves are never included.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Config map[string]string `json:"config"`
}

// HealthChecker serves the liveness endpoint.
type HealthChecker struct {
	cfg       *config.Config
	startTime time.Time
}

// NewHealthChecker creates a health checker for the given configuration.
func NewHealthChecker(cfg *config.Config) *HealthChecker {
	return &HealthChecker{cfg: cfg, startTime: time.Now()}
}

// Handler returns the /healthz handler. The process is degraded when any
// required configuration value is missing.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := make(map[string]string)
		allSet := true
		for name, present := range h.cfg.Presence() {
			if present {
				checks[name] = "set"
			} else {
				checks[name] = "missing"
				allSet = false
			}
		}

		resp := HealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Config: checks,
		}
		status := http.StatusOK
		if !allSet {
			resp.Status = healthStatusDegraded
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})
}
