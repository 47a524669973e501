package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/higgsflow/catalog-sync/internal/services"
)

type stubOrchestrator struct {
	stats     services.SyncStats
	report    services.ReconcileReport
	reconcile error
	calls     int
}

func (s *stubOrchestrator) Start(context.Context) error { return nil }
func (s *stubOrchestrator) Stop(context.Context) error  { return nil }

func (s *stubOrchestrator) Reconcile(context.Context) (services.ReconcileReport, error) {
	s.calls++
	return s.report, s.reconcile
}

func (s *stubOrchestrator) Stats() services.SyncStats { return s.stats }

func syncAdminRouter(orchestrator services.SyncOrchestrator) chi.Router {
	handlers := NewSyncAdminHandlers(orchestrator)
	r := chi.NewRouter()
	handlers.Register(r)
	return r
}

func TestSyncAdminStats(t *testing.T) {
	orchestrator := &stubOrchestrator{
		stats: services.SyncStats{
			Running:      true,
			TotalSynced:  42,
			SuccessCount: 40,
			ErrorCount:   2,
			QueueDepth:   3,
		},
	}
	router := syncAdminRouter(orchestrator)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sync/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["running"] != true {
		t.Fatalf("expected running true, got %v", body["running"])
	}
	if body["totalSynced"] != float64(42) {
		t.Fatalf("expected totalSynced 42, got %v", body["totalSynced"])
	}
	if body["queueDepth"] != float64(3) {
		t.Fatalf("expected queueDepth 3, got %v", body["queueDepth"])
	}
}

func TestSyncAdminReconcile(t *testing.T) {
	orchestrator := &stubOrchestrator{
		report: services.ReconcileReport{
			Products:  10,
			Created:   2,
			Updated:   3,
			Unchanged: 5,
			StartedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
			Duration:  1500 * time.Millisecond,
		},
	}
	router := syncAdminRouter(orchestrator)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sync/reconcile", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if orchestrator.calls != 1 {
		t.Fatalf("expected one reconcile call, got %d", orchestrator.calls)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["products"] != float64(10) || body["created"] != float64(2) {
		t.Fatalf("unexpected report body: %v", body)
	}
	if body["duration"] != "1.5s" {
		t.Fatalf("expected duration 1.5s, got %v", body["duration"])
	}
}

func TestSyncAdminReconcileFailure(t *testing.T) {
	orchestrator := &stubOrchestrator{reconcile: errors.New("source listing failed")}
	router := syncAdminRouter(orchestrator)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sync/reconcile", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestSyncAdminReconcileRejectsGet(t *testing.T) {
	router := syncAdminRouter(&stubOrchestrator{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sync/reconcile", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}
