package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/platform/observability"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const (
	defaultBatchSize  = 10
	defaultMaxRetries = 3
)

// SyncQueueDeps bundles collaborators required to construct a sync queue.
type SyncQueueDeps struct {
	Products    repositories.ProductSourceRepository
	Catalog     repositories.CatalogRepository
	SyncLog     repositories.SyncLogRepository
	Transformer ProductTransformer
	Detector    ChangeDetector
	Images      ImageJobQueue
	Events      SyncEventPublisher
	Metrics     *observability.SyncMetrics
	BatchSize   int
	MaxRetries  int
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type queueItem struct {
	op       SyncOperation
	syncID   string
	attempts int
}

type syncQueue struct {
	products    repositories.ProductSourceRepository
	catalog     repositories.CatalogRepository
	syncLog     repositories.SyncLogRepository
	transformer ProductTransformer
	detector    ChangeDetector
	images      ImageJobQueue
	events      SyncEventPublisher
	metrics     *observability.SyncMetrics
	batchSize   int
	maxRetries  int
	clock       func() time.Time
	newID       func() string
	logger      func(ctx context.Context, event string, fields map[string]any)

	mu        sync.Mutex
	items     []*queueItem
	draining  bool
	completed int64
	failed    int64
	retries   int64
}

// NewSyncQueue constructs the in-process sync work queue and batch processor.
func NewSyncQueue(deps SyncQueueDeps) (SyncQueue, error) {
	if deps.Products == nil {
		return nil, errors.New("sync queue: product repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("sync queue: catalog repository is required")
	}
	if deps.SyncLog == nil {
		return nil, errors.New("sync queue: sync log repository is required")
	}
	if deps.Transformer == nil {
		return nil, errors.New("sync queue: transformer is required")
	}
	if deps.Detector == nil {
		return nil, errors.New("sync queue: change detector is required")
	}

	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxRetries := deps.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &syncQueue{
		products:    deps.Products,
		catalog:     deps.Catalog,
		syncLog:     deps.SyncLog,
		transformer: deps.Transformer,
		detector:    deps.Detector,
		images:      deps.Images,
		events:      deps.Events,
		metrics:     deps.Metrics,
		batchSize:   batchSize,
		maxRetries:  maxRetries,
		clock:       func() time.Time { return clock().UTC() },
		newID:       newID,
		logger:      logger,
	}, nil
}

// Enqueue adds an operation to the queue. A queued (not in-flight) operation
// for the same product is replaced by the newer one rather than duplicated,
// so the queue holds at most one pending operation per product.
func (s *syncQueue) Enqueue(op SyncOperation) {
	if op.ProductID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.op.ProductID == op.ProductID {
			item.op = op
			item.syncID = s.newID()
			item.attempts = 0
			return
		}
	}

	s.items = append(s.items, &queueItem{op: op, syncID: s.newID()})
	s.metrics.QueueDelta(context.Background(), "sync", 1)
}

// Pending reports the number of queued operations.
func (s *syncQueue) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats returns a snapshot of queue counters.
func (s *syncQueue) Stats() QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueStats{
		Pending:   len(s.items),
		Completed: s.completed,
		Failed:    s.failed,
		Retries:   s.retries,
	}
}

// ProcessBatch drains up to batchSize operations and processes them
// concurrently. Reentrant calls while a batch is in flight are no-ops; the
// queue is a single-drainer structure, not a general worker pool. Coalescing
// guarantees each batch holds at most one operation per product, so
// concurrent item processing never races on the same catalog entry.
func (s *syncQueue) ProcessBatch(ctx context.Context) BatchOutcome {
	s.mu.Lock()
	if s.draining || len(s.items) == 0 {
		s.mu.Unlock()
		return BatchOutcome{}
	}
	s.draining = true
	take := s.batchSize
	if take > len(s.items) {
		take = len(s.items)
	}
	batch := s.items[:take]
	s.items = append([]*queueItem(nil), s.items[take:]...)
	s.mu.Unlock()

	s.metrics.QueueDelta(ctx, "sync", -int64(take))

	type itemResult struct {
		item    *queueItem
		outcome itemOutcome
	}
	results := make([]itemResult, len(batch))

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i, item := range batch {
		i, item := i, item
		go func() {
			defer wg.Done()
			results[i] = itemResult{item: item, outcome: s.processItem(ctx, item)}
		}()
	}
	wg.Wait()

	outcome := BatchOutcome{Processed: len(batch)}

	s.mu.Lock()
	for _, result := range results {
		switch result.outcome {
		case itemSucceeded:
			outcome.Succeeded++
		case itemFailed:
			outcome.Failed++
		case itemRetry:
			if s.hasQueuedLocked(result.item.op.ProductID) {
				// A newer operation for this product arrived while the retry
				// was in flight; it supersedes the stale attempt.
				continue
			}
			result.item.attempts++
			s.items = append(s.items, result.item)
			s.retries++
			outcome.Requeued++
		}
	}
	s.draining = false
	s.mu.Unlock()

	for _, result := range results {
		if result.outcome == itemRetry {
			s.metrics.RecordRetry(ctx, string(result.item.op.Type))
			s.metrics.QueueDelta(ctx, "sync", 1)
		}
	}
	return outcome
}

func (s *syncQueue) hasQueuedLocked(productID string) bool {
	for _, item := range s.items {
		if item.op.ProductID == productID {
			return true
		}
	}
	return false
}

type itemOutcome int

const (
	itemSucceeded itemOutcome = iota
	itemRetry
	itemFailed
)

type processResult struct {
	entryID       string
	changedFields []string
	partial       bool
}

// processItem executes one operation and classifies the result. Terminal
// outcomes (success or exhausted failure) each write exactly one sync log
// entry.
func (s *syncQueue) processItem(ctx context.Context, item *queueItem) itemOutcome {
	start := s.clock()
	result, err := s.execute(ctx, item)
	elapsed := s.clock().Sub(start)

	if err == nil {
		s.mu.Lock()
		s.completed++
		s.mu.Unlock()
		s.finish(ctx, item, result, domain.SyncStatusSuccess, elapsed, nil)
		return itemSucceeded
	}

	if pfirestore.IsRetryable(err) && item.attempts+1 < s.maxRetries {
		s.logger(ctx, "sync.retry", map[string]any{
			"syncId":    item.syncID,
			"productId": item.op.ProductID,
			"attempt":   item.attempts + 1,
			"error":     err.Error(),
		})
		return itemRetry
	}

	s.mu.Lock()
	s.failed++
	s.mu.Unlock()

	status := domain.SyncStatusFailed
	if result.partial {
		status = domain.SyncStatusPartial
	}
	s.finish(ctx, item, result, status, elapsed, err)
	return itemFailed
}

// execute performs the operation against current store state. Snapshots
// captured at enqueue time are never written; every attempt re-reads so a
// stale retry cannot overtake a newer write.
func (s *syncQueue) execute(ctx context.Context, item *queueItem) (processResult, error) {
	switch item.op.Type {
	case domain.SyncTypeDelete:
		return s.executeDelete(ctx, item.op.ProductID)
	default:
		return s.executeUpsert(ctx, item)
	}
}

func (s *syncQueue) executeUpsert(ctx context.Context, item *queueItem) (processResult, error) {
	product, err := s.products.FindByID(ctx, item.op.ProductID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			// Product vanished between enqueue and processing.
			return s.executeDelete(ctx, item.op.ProductID)
		}
		return processResult{}, err
	}

	candidate := s.transformer.Transform(product)
	existing, err := s.catalog.FindByInternalID(ctx, product.ID)
	if err != nil {
		return processResult{}, err
	}

	if len(existing) == 0 {
		entry, created, err := s.catalog.Insert(ctx, candidate)
		if err != nil {
			return processResult{}, err
		}
		if created && s.images != nil {
			s.images.Enqueue(ImageJob{Product: product, EntryID: entry.ID})
		}
		return processResult{entryID: entry.ID, changedFields: []string{"*"}}, nil
	}

	now := s.clock()
	result := processResult{entryID: existing[0].ID}
	applied := 0
	for _, entry := range existing {
		diff := s.detector.Diff(candidate, entry)
		if diff == nil {
			continue
		}
		if err := s.catalog.ApplyUpdate(ctx, repositories.EntryUpdate{
			EntryID:  entry.ID,
			Update:   *diff,
			SyncedAt: now,
		}); err != nil {
			result.partial = applied > 0
			return result, err
		}
		applied++
		result.changedFields = diff.ChangedFields()
		if diff.RegenerateImages && s.images != nil {
			s.images.Enqueue(ImageJob{Product: product, EntryID: entry.ID})
		}
	}
	return result, nil
}

func (s *syncQueue) executeDelete(ctx context.Context, productID string) (processResult, error) {
	deleted, err := s.catalog.DeleteByInternalID(ctx, productID)
	result := processResult{partial: err != nil && deleted > 0}
	if err != nil {
		return result, err
	}
	result.changedFields = []string{fmt.Sprintf("deleted:%d", deleted)}
	return result, nil
}

// finish records the terminal outcome: one audit log entry, one metrics
// sample and one best-effort lifecycle event.
func (s *syncQueue) finish(
	ctx context.Context,
	item *queueItem,
	result processResult,
	status domain.SyncStatus,
	elapsed time.Duration,
	cause error,
) {
	now := s.clock()
	logEntry := domain.SyncLogEntry{
		SyncID:             item.syncID,
		InternalProductID:  item.op.ProductID,
		EcommerceProductID: result.entryID,
		SyncType:           item.op.Type,
		Status:             status,
		ChangedFields:      result.changedFields,
		RetryCount:         item.attempts,
		ProcessingTimeMs:   elapsed.Milliseconds(),
		CreatedAt:          now,
	}
	if cause != nil {
		logEntry.ErrorMessage = cause.Error()
	}

	if _, err := s.syncLog.Append(ctx, logEntry); err != nil {
		s.logger(ctx, "sync.audit.append_failed", map[string]any{
			"syncId": item.syncID,
			"error":  err.Error(),
		})
	}

	s.metrics.RecordOperation(ctx, string(item.op.Type), string(status))

	if status != domain.SyncStatusSuccess {
		s.logger(ctx, "sync.failed", map[string]any{
			"syncId":    item.syncID,
			"productId": item.op.ProductID,
			"syncType":  string(item.op.Type),
			"attempts":  item.attempts + 1,
			"error":     logEntry.ErrorMessage,
		})
	}

	if s.events == nil {
		return
	}
	if _, err := s.events.PublishSyncEvent(ctx, SyncEventMessage{
		Event:              "catalog.sync." + string(status),
		SyncID:             item.syncID,
		InternalProductID:  item.op.ProductID,
		EcommerceProductID: result.entryID,
		SyncType:           string(item.op.Type),
		Status:             string(status),
		ChangedFields:      result.changedFields,
		RetryCount:         item.attempts,
		ProcessingTimeMs:   elapsed.Milliseconds(),
		ErrorMessage:       logEntry.ErrorMessage,
		OccurredAt:         now,
	}); err != nil {
		s.logger(ctx, "sync.event.publish_failed", map[string]any{
			"syncId": item.syncID,
			"error":  err.Error(),
		})
	}
}
