package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/higgsflow/catalog-sync/internal/platform/httpx"
	"github.com/higgsflow/catalog-sync/internal/services"
)

// SyncAdminHandlers exposes the operator surface of the sync pipeline.
type SyncAdminHandlers struct {
	orchestrator services.SyncOrchestrator
}

// NewSyncAdminHandlers constructs handlers for /api/v1/internal/sync.
func NewSyncAdminHandlers(orchestrator services.SyncOrchestrator) *SyncAdminHandlers {
	return &SyncAdminHandlers{orchestrator: orchestrator}
}

// Register mounts the sync admin routes on the router group.
func (h *SyncAdminHandlers) Register(r chi.Router) {
	r.Get("/sync/stats", h.Stats)
	r.Post("/sync/reconcile", h.Reconcile)
}

// Stats returns the in-memory sync health snapshot.
func (h *SyncAdminHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.orchestrator.Stats())
}

// Reconcile re-triggers the full reconciliation pass and reports its outcome.
func (h *SyncAdminHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.orchestrator.Reconcile(r.Context())
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("reconcile_failed", err.Error(), http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"products":  report.Products,
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
		"startedAt": report.StartedAt,
		"duration":  report.Duration.String(),
	})
}
