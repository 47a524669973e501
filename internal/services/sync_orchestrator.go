package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const (
	defaultSyncInterval  = 3 * time.Second
	defaultImageInterval = 10 * time.Second
	defaultBatchPause    = 100 * time.Millisecond
	defaultDrainTimeout  = 10 * time.Second
)

var (
	// ErrOrchestratorRunning indicates Start was called on a running instance.
	ErrOrchestratorRunning = errors.New("orchestrator: already running")
	// ErrDrainTimeout indicates in-flight work did not finish before the stop deadline.
	ErrDrainTimeout = errors.New("orchestrator: drain timeout")
)

// TickerFactory builds a tick channel plus its stop function. Tests supply
// hand-driven channels so they can advance virtual time instead of sleeping.
type TickerFactory func(interval time.Duration) (<-chan time.Time, func())

// SyncOrchestratorDeps bundles collaborators required to construct an orchestrator.
type SyncOrchestratorDeps struct {
	Products      repositories.ProductSourceRepository
	Catalog       repositories.CatalogRepository
	Queue         SyncQueue
	Images        ImageJobQueue
	Transformer   ProductTransformer
	Detector      ChangeDetector
	SyncInterval  time.Duration
	ImageInterval time.Duration
	BatchSize     int
	BatchPause    time.Duration
	DrainTimeout  time.Duration
	Clock         func() time.Time
	NewTicker     TickerFactory
	Sleep         func(ctx context.Context, d time.Duration)
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type syncOrchestrator struct {
	products      repositories.ProductSourceRepository
	catalog       repositories.CatalogRepository
	queue         SyncQueue
	images        ImageJobQueue
	transformer   ProductTransformer
	detector      ChangeDetector
	syncInterval  time.Duration
	imageInterval time.Duration
	batchSize     int
	batchPause    time.Duration
	drainTimeout  time.Duration
	clock         func() time.Time
	newTicker     TickerFactory
	sleep         func(ctx context.Context, d time.Duration)
	logger        func(ctx context.Context, event string, fields map[string]any)

	mu              sync.Mutex
	running         bool
	stopWatch       repositories.StopWatchFunc
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	lastReconcileAt time.Time
	lastBatchAt     time.Time
}

// NewSyncOrchestrator constructs the pipeline owner. The instance is inert
// until Start; multiple isolated instances can coexist in tests.
func NewSyncOrchestrator(deps SyncOrchestratorDeps) (SyncOrchestrator, error) {
	if deps.Products == nil {
		return nil, errors.New("orchestrator: product repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("orchestrator: catalog repository is required")
	}
	if deps.Queue == nil {
		return nil, errors.New("orchestrator: sync queue is required")
	}
	if deps.Images == nil {
		return nil, errors.New("orchestrator: image queue is required")
	}
	if deps.Transformer == nil {
		return nil, errors.New("orchestrator: transformer is required")
	}
	if deps.Detector == nil {
		return nil, errors.New("orchestrator: change detector is required")
	}

	o := &syncOrchestrator{
		products:      deps.Products,
		catalog:       deps.Catalog,
		queue:         deps.Queue,
		images:        deps.Images,
		transformer:   deps.Transformer,
		detector:      deps.Detector,
		syncInterval:  deps.SyncInterval,
		imageInterval: deps.ImageInterval,
		batchSize:     deps.BatchSize,
		batchPause:    deps.BatchPause,
		drainTimeout:  deps.DrainTimeout,
		newTicker:     deps.NewTicker,
		sleep:         deps.Sleep,
		logger:        deps.Logger,
	}
	if o.syncInterval <= 0 {
		o.syncInterval = defaultSyncInterval
	}
	if o.imageInterval <= 0 {
		o.imageInterval = defaultImageInterval
	}
	if o.batchSize <= 0 {
		o.batchSize = defaultBatchSize
	}
	if o.batchPause <= 0 {
		o.batchPause = defaultBatchPause
	}
	if o.drainTimeout <= 0 {
		o.drainTimeout = defaultDrainTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	o.clock = func() time.Time { return clock().UTC() }
	if o.newTicker == nil {
		o.newTicker = func(interval time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(interval)
			return ticker.C, ticker.Stop
		}
	}
	if o.sleep == nil {
		o.sleep = func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
	if o.logger == nil {
		o.logger = func(context.Context, string, map[string]any) {}
	}
	return o, nil
}

// Start runs the initial reconciliation pass, installs the live product
// watch and starts the two queue timers. A reconciliation failure is logged
// but does not prevent the live pipeline from coming up.
func (o *syncOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrOrchestratorRunning
	}
	o.running = true
	o.mu.Unlock()

	if _, err := o.Reconcile(ctx); err != nil {
		o.logger(ctx, "sync.reconcile.failed", map[string]any{"error": err.Error()})
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stopWatch, err := o.products.Watch(runCtx, func(ctx context.Context, change domain.ProductChange) {
		// Listener callbacks only enqueue; all I/O happens on the batch timer.
		o.queue.Enqueue(operationFor(change))
	})
	if err != nil {
		cancel()
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	o.stopWatch = stopWatch
	o.cancel = cancel
	o.mu.Unlock()

	o.wg.Add(2)
	go o.syncLoop(runCtx)
	go o.imageLoop(runCtx)

	o.logger(ctx, "sync.started", map[string]any{
		"syncInterval":  o.syncInterval.String(),
		"imageInterval": o.imageInterval.String(),
	})
	return nil
}

// Stop tears down the watch and timers, then waits for in-flight work to
// finish naturally so no half-written catalog entry is left behind.
func (o *syncOrchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	stopWatch := o.stopWatch
	cancel := o.cancel
	o.stopWatch = nil
	o.cancel = nil
	o.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger(ctx, "sync.stopped", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.drainTimeout):
		return ErrDrainTimeout
	}
}

// Reconcile compares every internal product against the public catalog,
// inserting or updating in bounded batches with a pause in between so a
// large catalog cannot overwhelm the store. Item failures are isolated.
func (o *syncOrchestrator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	started := o.clock()
	report := ReconcileReport{StartedAt: started}

	products, err := o.products.List(ctx)
	if err != nil {
		return report, err
	}
	report.Products = len(products)

	entries, err := o.catalog.List(ctx, repositories.CatalogListFilter{})
	if err != nil {
		return report, err
	}
	byProduct := make(map[string][]domain.PublicCatalogEntry, len(entries))
	for _, entry := range entries {
		byProduct[entry.InternalProductID] = append(byProduct[entry.InternalProductID], entry)
	}

	seen := make(map[string]bool, len(products))
	for offset := 0; offset < len(products); offset += o.batchSize {
		end := offset + o.batchSize
		if end > len(products) {
			end = len(products)
		}
		o.reconcileBatch(ctx, products[offset:end], byProduct, seen, &report)

		if end < len(products) {
			o.sleep(ctx, o.batchPause)
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	// Entries whose source product no longer exists are drift; queue their
	// removal through the normal delete path.
	for productID := range byProduct {
		if !seen[productID] {
			o.queue.Enqueue(SyncOperation{Type: domain.SyncTypeDelete, ProductID: productID})
		}
	}

	now := o.clock()
	report.Duration = now.Sub(started)
	o.mu.Lock()
	o.lastReconcileAt = now
	o.mu.Unlock()

	o.logger(ctx, "sync.reconcile.completed", map[string]any{
		"products":  report.Products,
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
	})
	return report, nil
}

func (o *syncOrchestrator) reconcileBatch(
	ctx context.Context,
	products []domain.InternalProduct,
	byProduct map[string][]domain.PublicCatalogEntry,
	seen map[string]bool,
	report *ReconcileReport,
) {
	now := o.clock()
	var updates []repositories.EntryUpdate
	updateProducts := make([]string, 0, len(products))

	for _, product := range products {
		seen[product.ID] = true
		existing := byProduct[product.ID]
		candidate := o.transformer.Transform(product)

		if len(existing) == 0 {
			entry, created, err := o.catalog.Insert(ctx, candidate)
			if err != nil {
				report.Failed++
				o.logger(ctx, "sync.reconcile.item_failed", map[string]any{
					"productId": product.ID,
					"error":     err.Error(),
				})
				continue
			}
			if created {
				report.Created++
				o.images.Enqueue(ImageJob{Product: product, EntryID: entry.ID})
			} else {
				report.Unchanged++
			}
			continue
		}

		changed := false
		for _, entry := range existing {
			diff := o.detector.Diff(candidate, entry)
			if diff == nil {
				continue
			}
			changed = true
			updates = append(updates, repositories.EntryUpdate{
				EntryID:  entry.ID,
				Update:   *diff,
				SyncedAt: now,
			})
			updateProducts = append(updateProducts, product.ID)
			if diff.RegenerateImages {
				o.images.Enqueue(ImageJob{Product: product, EntryID: entry.ID})
			}
		}
		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
	}

	for i, err := range o.catalog.ApplyUpdates(ctx, updates) {
		if err != nil {
			report.Failed++
			report.Updated--
			o.logger(ctx, "sync.reconcile.item_failed", map[string]any{
				"productId": updateProducts[i],
				"entryId":   updates[i].EntryID,
				"error":     err.Error(),
			})
		}
	}
}

// Stats assembles the sync-health snapshot from in-memory counters.
func (o *syncOrchestrator) Stats() SyncStats {
	queueStats := o.queue.Stats()

	o.mu.Lock()
	running := o.running
	lastReconcileAt := o.lastReconcileAt
	lastBatchAt := o.lastBatchAt
	o.mu.Unlock()

	return SyncStats{
		Running:         running,
		TotalSynced:     queueStats.Completed + queueStats.Failed,
		SuccessCount:    queueStats.Completed,
		ErrorCount:      queueStats.Failed,
		RetryCount:      queueStats.Retries,
		QueueDepth:      queueStats.Pending,
		ImageQueueDepth: o.images.Pending(),
		LastReconcileAt: lastReconcileAt,
		LastBatchAt:     lastBatchAt,
	}
}

func (o *syncOrchestrator) syncLoop(ctx context.Context) {
	defer o.wg.Done()
	ticks, stop := o.newTicker(o.syncInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			outcome := o.queue.ProcessBatch(ctx)
			if outcome.Processed > 0 {
				o.mu.Lock()
				o.lastBatchAt = o.clock()
				o.mu.Unlock()
			}
		}
	}
}

func (o *syncOrchestrator) imageLoop(ctx context.Context) {
	defer o.wg.Done()
	ticks, stop := o.newTicker(o.imageInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			o.images.ProcessNext(ctx)
		}
	}
}

func operationFor(change domain.ProductChange) SyncOperation {
	op := SyncOperation{ProductID: change.Product.ID, Product: change.Product}
	switch change.Kind {
	case domain.ChangeAdded:
		op.Type = domain.SyncTypeCreate
	case domain.ChangeRemoved:
		op.Type = domain.SyncTypeDelete
	default:
		op.Type = domain.SyncTypeUpdate
	}
	return op
}
