package handlers

import (
	"net/http"
	"time"

	"github.com/higgsflow/catalog-sync/internal/domain"
	"github.com/higgsflow/catalog-sync/internal/platform/httpx"
	"github.com/higgsflow/catalog-sync/internal/repositories"
	"github.com/higgsflow/catalog-sync/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health  repositories.HealthRepository
	stats   func() services.SyncStats
	clock   func() time.Time
	started time.Time
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthRepository wires the dependency probe set used by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// WithSyncStats wires the orchestrator stats snapshot into readiness output.
func WithSyncStats(stats func() services.SyncStats) HealthOption {
	return func(h *HealthHandlers) {
		h.stats = stats
	}
}

// WithHealthClock injects a custom clock primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs handlers for /healthz and /readyz.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.clock()
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz reports dependency health plus the sync pipeline state. The probe
// fails when any dependency errors or the orchestrator is not running.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.health != nil {
		report, err := h.health.Collect(r.Context())
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("readiness_check_failed", err.Error(), http.StatusServiceUnavailable))
			return
		}
		payload["dependencies"] = report
		if report.Status == domain.HealthStatusError {
			payload["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if h.stats != nil {
		stats := h.stats()
		payload["sync"] = stats
		if !stats.Running {
			payload["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	httpx.WriteJSON(w, status, payload)
}
