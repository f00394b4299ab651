package handler

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether one dependency, such as the database or cache, is reachable.
type Check func(ctx context.Context) error

type SystemHandler struct {
	checks    map[string]Check
	logger    Logger
	startTime time.Time
}

func NewSystemHandler(checks map[string]Check, log Logger) *SystemHandler {
	return &SystemHandler{checks: checks, logger: log, startTime: time.Now()}
}

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready reports 503 until every dependency answers.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]dependencyStatus, len(h.checks))
	for name, check := range h.checks {
		start := time.Now()
		err := check(ctx)
		ds := dependencyStatus{Status: "operational", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			h.logger.Error("Readiness check failed", map[string]interface{}{"dependency": name, "error": err})
			ds.Status = "outage"
			ds.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		deps[name] = ds
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"dependencies": deps,
	})
}
