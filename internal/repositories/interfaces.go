package repositories

import (
	"context"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductChangeHandler receives internal product change notifications from a live watch.
type ProductChangeHandler func(ctx context.Context, change domain.ProductChange)

// StopWatchFunc terminates a live watch and blocks until the listener goroutine exits.
type StopWatchFunc func()

// ProductSourceRepository reads the internal product store and exposes its change feed.
type ProductSourceRepository interface {
	List(ctx context.Context) ([]domain.InternalProduct, error)
	FindByID(ctx context.Context, productID string) (domain.InternalProduct, error)
	Watch(ctx context.Context, handler ProductChangeHandler) (StopWatchFunc, error)
}

// EntryUpdate pairs a catalog entry with the diff to persist against it.
type EntryUpdate struct {
	EntryID  string
	Update   domain.FieldUpdate
	SyncedAt time.Time
}

// CatalogListFilter narrows the server-side portion of a catalog query. Finer
// filtering and relevance scoring happen in the reader.
type CatalogListFilter struct {
	Visibility   domain.Visibility
	Category     string
	FeaturedOnly bool
	Limit        int
}

// CatalogRepository persists derived public catalog entries.
type CatalogRepository interface {
	FindByID(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error)
	FindByInternalID(ctx context.Context, internalProductID string) ([]domain.PublicCatalogEntry, error)
	// Insert creates the entry unless one already exists for the same internal
	// product, in which case the existing entry is returned with created=false.
	Insert(ctx context.Context, entry domain.PublicCatalogEntry) (domain.PublicCatalogEntry, bool, error)
	ApplyUpdate(ctx context.Context, update EntryUpdate) error
	// ApplyUpdates commits the batch in one bulk write. The returned slice is
	// aligned with the input; nil elements indicate success.
	ApplyUpdates(ctx context.Context, updates []EntryUpdate) []error
	PatchImages(ctx context.Context, entryID string, images domain.ImageSet, updatedAt time.Time) error
	DeleteByInternalID(ctx context.Context, internalProductID string) (int, error)
	List(ctx context.Context, filter CatalogListFilter) ([]domain.PublicCatalogEntry, error)
}

// SyncLogRepository appends immutable sync audit records.
type SyncLogRepository interface {
	Append(ctx context.Context, entry domain.SyncLogEntry) (string, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
