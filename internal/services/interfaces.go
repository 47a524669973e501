package services

import (
	"context"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
)

// ProductTransformer derives a public catalog entry from an internal product.
// Implementations are pure; the only time-dependent fields are the ones the
// injected clock stamps explicitly.
type ProductTransformer interface {
	Transform(product domain.InternalProduct) domain.PublicCatalogEntry
}

// ChangeDetector compares a freshly transformed candidate against the stored
// entry and produces a minimal diff, or nil when nothing semantic changed.
type ChangeDetector interface {
	Diff(candidate domain.PublicCatalogEntry, existing domain.PublicCatalogEntry) *domain.FieldUpdate
}

// SyncOperation is one pending mutation against the public catalog. Product
// is the snapshot taken at enqueue time; processors re-read current state
// before writing so a stale snapshot never overwrites newer data.
type SyncOperation struct {
	Type      domain.SyncType
	ProductID string
	Product   domain.InternalProduct
}

// BatchOutcome summarises one batch-processor tick.
type BatchOutcome struct {
	Processed int
	Succeeded int
	Requeued  int
	Failed    int
}

// QueueStats is a point-in-time snapshot of sync queue counters.
type QueueStats struct {
	Pending   int
	Completed int64
	Failed    int64
	Retries   int64
}

// SyncQueue accepts sync operations and drains them in bounded batches.
type SyncQueue interface {
	Enqueue(op SyncOperation)
	ProcessBatch(ctx context.Context) BatchOutcome
	Pending() int
	Stats() QueueStats
}

// ImageJob requests generated imagery for one catalog entry. EntryID may be
// empty at enqueue time; the processor resolves it by internal product id.
type ImageJob struct {
	Product domain.InternalProduct
	EntryID string
}

// ImageJobQueue feeds the external image generator one job at a time.
type ImageJobQueue interface {
	Enqueue(job ImageJob)
	ProcessNext(ctx context.Context) bool
	Pending() int
}

// ReconcileReport summarises a full reconciliation pass.
type ReconcileReport struct {
	Products  int
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
}

// SyncStats is the sync-health snapshot exposed to operators.
type SyncStats struct {
	Running         bool      `json:"running"`
	TotalSynced     int64     `json:"totalSynced"`
	SuccessCount    int64     `json:"successCount"`
	ErrorCount      int64     `json:"errorCount"`
	RetryCount      int64     `json:"retryCount"`
	QueueDepth      int       `json:"queueDepth"`
	ImageQueueDepth int       `json:"imageQueueDepth"`
	LastReconcileAt time.Time `json:"lastReconcileAt"`
	LastBatchAt     time.Time `json:"lastBatchAt"`
}

// SyncOrchestrator owns the pipeline lifecycle: reconciliation, the live
// product watch, and the two queue timers.
type SyncOrchestrator interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reconcile(ctx context.Context) (ReconcileReport, error)
	Stats() SyncStats
}

// CatalogFilter narrows and orders storefront catalog queries.
type CatalogFilter struct {
	Category     string
	FeaturedOnly bool
	TrendingOnly bool
	InStockOnly  bool
	MinPrice     float64
	MaxPrice     float64
	Sort         string
	Limit        int
}

// SearchResult carries scored search hits plus derived suggestion terms.
type SearchResult struct {
	Entries     []domain.PublicCatalogEntry
	Suggestions []string
}

// CatalogReader is the read-only storefront query facade. It never writes.
type CatalogReader interface {
	List(ctx context.Context, filter CatalogFilter) ([]domain.PublicCatalogEntry, error)
	Search(ctx context.Context, term string, filter CatalogFilter) (SearchResult, error)
	Get(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error)
}

// SyncEventMessage is the lifecycle event published for each terminal sync
// outcome, consumed by downstream observability tooling.
type SyncEventMessage struct {
	Event              string    `json:"event"`
	SyncID             string    `json:"syncId"`
	InternalProductID  string    `json:"internalProductId"`
	EcommerceProductID string    `json:"ecommerceProductId,omitempty"`
	SyncType           string    `json:"syncType"`
	Status             string    `json:"status"`
	ChangedFields      []string  `json:"changedFields,omitempty"`
	RetryCount         int       `json:"retryCount"`
	ProcessingTimeMs   int64     `json:"processingTimeMs"`
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}

// SyncEventPublisher emits sync lifecycle events. Publish failures are
// logged by callers, never treated as sync failures.
type SyncEventPublisher interface {
	PublishSyncEvent(ctx context.Context, event SyncEventMessage) (string, error)
}
