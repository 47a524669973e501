package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const defaultImageMaxRetries = 2

// ImageGenerator produces catalog imagery for a product. The concrete
// provider sits behind this interface so it can be swapped without touching
// queue logic.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, product domain.InternalProduct) (domain.ImageSet, error)
}

// ImagePipelineDeps bundles collaborators required to construct the image job queue.
type ImagePipelineDeps struct {
	Catalog    repositories.CatalogRepository
	Generator  ImageGenerator
	MaxRetries int
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type imageJobItem struct {
	job      ImageJob
	attempts int
}

type imageJobQueue struct {
	catalog    repositories.CatalogRepository
	generator  ImageGenerator
	maxRetries int
	clock      func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)

	mu         sync.Mutex
	jobs       []*imageJobItem
	processing bool
}

// NewImageJobQueue constructs the low-priority image generation queue.
func NewImageJobQueue(deps ImagePipelineDeps) (ImageJobQueue, error) {
	if deps.Catalog == nil {
		return nil, errors.New("image queue: catalog repository is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("image queue: generator is required")
	}

	maxRetries := deps.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultImageMaxRetries
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &imageJobQueue{
		catalog:    deps.Catalog,
		generator:  deps.Generator,
		maxRetries: maxRetries,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// Enqueue adds a job unless one is already queued for the same product.
func (q *imageJobQueue) Enqueue(job ImageJob) {
	if job.Product.ID == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.jobs {
		if item.job.Product.ID == job.Product.ID {
			if item.job.EntryID == "" {
				item.job.EntryID = job.EntryID
			}
			return
		}
	}
	q.jobs = append(q.jobs, &imageJobItem{job: job})
}

// Pending reports the number of queued image jobs.
func (q *imageJobQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// ProcessNext runs at most one job. The processing guard keeps the queue
// single-flight: overlapping timer ticks while a generation call is in
// progress return immediately. Reports whether a job was attempted.
func (q *imageJobQueue) ProcessNext(ctx context.Context) bool {
	q.mu.Lock()
	if q.processing || len(q.jobs) == 0 {
		q.mu.Unlock()
		return false
	}
	q.processing = true
	item := q.jobs[0]
	q.jobs = append([]*imageJobItem(nil), q.jobs[1:]...)
	q.mu.Unlock()

	err := q.runJob(ctx, item)

	q.mu.Lock()
	if err != nil {
		item.attempts++
		if item.attempts <= q.maxRetries {
			q.jobs = append(q.jobs, item)
		}
	}
	q.processing = false
	q.mu.Unlock()

	if err != nil {
		event := "images.retry"
		if item.attempts > q.maxRetries {
			event = "images.dropped"
		}
		q.logger(ctx, event, map[string]any{
			"productId": item.job.Product.ID,
			"entryId":   item.job.EntryID,
			"attempts":  item.attempts,
			"error":     err.Error(),
		})
	}
	return true
}

func (q *imageJobQueue) runJob(ctx context.Context, item *imageJobItem) error {
	// Entry id may be unknown when the job was enqueued concurrently with the
	// catalog insert; resolve it against current store state.
	if item.job.EntryID == "" {
		entries, err := q.catalog.FindByInternalID(ctx, item.job.Product.ID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("image queue: catalog entry not found for product " + item.job.Product.ID)
		}
		item.job.EntryID = entries[0].ID
	}

	images, err := q.generator.GenerateImages(ctx, item.job.Product)
	if err != nil {
		return err
	}

	now := q.clock()
	images.ImageGenerated = true
	images.LastImageUpdate = now
	return q.catalog.PatchImages(ctx, item.job.EntryID, images, now)
}
