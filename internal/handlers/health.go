package handlers

import (
	"net/http"
	"time"

	"github.com/printbound/api/internal/platform/httpx"
	"github.com/printbound/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	system    services.SystemService
	startedAt time.Time
	clock     func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock injects a custom clock for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the probe handlers. A nil system service makes
// /readyz report ready unconditionally.
func NewHealthHandlers(system services.SystemService, opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		system: system,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock()
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    h.clock().Sub(h.startedAt).String(),
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	})
}

// Readyz reports downstream dependency health.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_check_failed", "unable to collect dependency health", http.StatusServiceUnavailable))
		return
	}

	components := make(map[string]any, len(report.Components))
	ready := true
	for name, component := range report.Components {
		entry := map[string]any{"healthy": component.Healthy}
		if component.Detail != "" {
			entry["detail"] = component.Detail
		}
		components[name] = entry
		if !component.Healthy {
			ready = false
		}
	}

	status := http.StatusOK
	state := "ok"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSONResponse(w, status, map[string]any{
		"status":     state,
		"components": components,
		"checked_at": formatTime(report.CheckedAt),
	})
}
