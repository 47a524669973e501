package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const catalogCollection = "catalog_entries"

// CatalogRepository persists derived public catalog entries.
type CatalogRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.PublicCatalogEntry]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		base: pfirestore.NewBaseRepository(
			provider,
			catalogCollection,
			pfirestore.IdentityEncoder[domain.PublicCatalogEntry](),
			pfirestore.StructDecoder[domain.PublicCatalogEntry](),
		),
	}, nil
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// FindByID loads a catalog entry by document id.
func (r *CatalogRepository) FindByID(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error) {
	doc, err := r.base.Get(ctx, entryID)
	if err != nil {
		return domain.PublicCatalogEntry{}, err
	}
	entry := doc.Data
	entry.ID = doc.ID
	return entry, nil
}

// FindByInternalID returns every entry derived from the given internal product.
func (r *CatalogRepository) FindByInternalID(ctx context.Context, internalProductID string) ([]domain.PublicCatalogEntry, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("internalProductId", "==", internalProductID)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.PublicCatalogEntry, 0, len(docs))
	for _, doc := range docs {
		entry := doc.Data
		entry.ID = doc.ID
		entries = append(entries, entry)
	}
	return entries, nil
}

// Insert creates the entry inside a transaction, first checking for an
// existing entry with the same internal product id so that replayed create
// operations never duplicate.
func (r *CatalogRepository) Insert(ctx context.Context, entry domain.PublicCatalogEntry) (domain.PublicCatalogEntry, bool, error) {
	if entry.InternalProductID == "" {
		return domain.PublicCatalogEntry{}, false, errors.New("catalog repository: internal product id is required")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.PublicCatalogEntry{}, false, err
	}

	stored := entry
	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(coll.Where("internalProductId", "==", entry.InternalProductID).Limit(1))
		defer iter.Stop()

		snap, err := iter.Next()
		if err == nil {
			doc, decodeErr := r.base.Decode(ctx, snap)
			if decodeErr != nil {
				return decodeErr
			}
			stored = doc.Data
			stored.ID = doc.ID
			created = false
			return nil
		}
		if !errors.Is(err, iterator.Done) {
			return pfirestore.WrapError("catalog_entries.insert", err)
		}

		ref := coll.Doc(entry.ID)
		if entry.ID == "" {
			ref = coll.NewDoc()
		}
		stored = entry
		stored.ID = ref.ID
		payload := stored
		payload.ID = ""
		created = true
		return tx.Create(ref, payload)
	})
	if err != nil {
		return domain.PublicCatalogEntry{}, false, err
	}
	return stored, created, nil
}

// ApplyUpdate persists a single diff against an existing entry.
func (r *CatalogRepository) ApplyUpdate(ctx context.Context, update repositories.EntryUpdate) error {
	updates, err := buildEntryUpdates(update)
	if err != nil {
		return err
	}
	_, err = r.base.Update(ctx, update.EntryID, updates)
	return err
}

// ApplyUpdates commits the batch through one bulk writer. The returned slice
// is aligned with the input; nil elements indicate success.
func (r *CatalogRepository) ApplyUpdates(ctx context.Context, updates []repositories.EntryUpdate) []error {
	results := make([]error, len(updates))
	if len(updates) == 0 {
		return results
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		for i := range results {
			results[i] = err
		}
		return results
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		for i := range results {
			results[i] = err
		}
		return results
	}

	writes := make([]pfirestore.BatchWrite, 0, len(updates))
	indexes := make([]int, 0, len(updates))
	for i, update := range updates {
		fieldUpdates, err := buildEntryUpdates(update)
		if err != nil {
			results[i] = err
			continue
		}
		writes = append(writes, pfirestore.BatchWrite{
			Ref:     coll.Doc(update.EntryID),
			Updates: fieldUpdates,
		})
		indexes = append(indexes, i)
	}

	for j, err := range pfirestore.CommitBatch(ctx, client, writes) {
		if err != nil {
			results[indexes[j]] = pfirestore.WrapError("catalog_entries.update", err)
		}
	}
	return results
}

// PatchImages overwrites only the image block of an entry.
func (r *CatalogRepository) PatchImages(ctx context.Context, entryID string, images domain.ImageSet, updatedAt time.Time) error {
	if entryID == "" {
		return errors.New("catalog repository: entry id is required")
	}
	_, err := r.base.Update(ctx, entryID, []firestore.Update{
		{Path: "images", Value: images},
		{Path: "updatedAt", Value: updatedAt},
	})
	return err
}

// DeleteByInternalID removes every entry derived from the internal product
// and reports how many documents were deleted.
func (r *CatalogRepository) DeleteByInternalID(ctx context.Context, internalProductID string) (int, error) {
	entries, err := r.FindByInternalID(ctx, internalProductID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}

	writes := make([]pfirestore.BatchWrite, 0, len(entries))
	for _, entry := range entries {
		writes = append(writes, pfirestore.BatchWrite{Ref: coll.Doc(entry.ID), Delete: true})
	}

	deleted := 0
	var firstErr error
	for _, err := range pfirestore.CommitBatch(ctx, client, writes) {
		if err == nil {
			deleted++
			continue
		}
		if firstErr == nil {
			firstErr = pfirestore.WrapError("catalog_entries.delete", err)
		}
	}
	return deleted, firstErr
}

// List runs the server-side portion of a catalog query. Relevance scoring and
// finer filtering happen in the reader.
func (r *CatalogRepository) List(ctx context.Context, filter repositories.CatalogListFilter) ([]domain.PublicCatalogEntry, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Visibility != "" {
			query = query.Where("visibility", "==", string(filter.Visibility))
		}
		if filter.Category != "" {
			query = query.Where("category", "==", filter.Category)
		}
		if filter.FeaturedOnly {
			query = query.Where("featured", "==", true)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.PublicCatalogEntry, 0, len(docs))
	for _, doc := range docs {
		entry := doc.Data
		entry.ID = doc.ID
		entries = append(entries, entry)
	}
	return entries, nil
}

func buildEntryUpdates(update repositories.EntryUpdate) ([]firestore.Update, error) {
	if update.EntryID == "" {
		return nil, errors.New("catalog repository: entry id is required")
	}
	if update.Update.IsEmpty() {
		return nil, errors.New("catalog repository: update carries no changed groups")
	}

	candidate := update.Update.Candidate
	updates := make([]firestore.Update, 0, 8)
	for _, group := range update.Update.Groups {
		switch group {
		case domain.GroupPricing:
			updates = append(updates, firestore.Update{Path: "pricing", Value: candidate.Pricing})
		case domain.GroupAvailability:
			updates = append(updates, firestore.Update{Path: "availability", Value: candidate.Availability})
		case domain.GroupDisplay:
			updates = append(updates,
				firestore.Update{Path: "displayName", Value: candidate.DisplayName},
				firestore.Update{Path: "customerDescription", Value: candidate.CustomerDescription},
			)
		case domain.GroupCategorySEO:
			updates = append(updates,
				firestore.Update{Path: "category", Value: candidate.Category},
				firestore.Update{Path: "subcategory", Value: candidate.Subcategory},
				firestore.Update{Path: "seo", Value: candidate.SEO},
			)
		case domain.GroupSupplier:
			updates = append(updates, firestore.Update{Path: "supplier", Value: candidate.Supplier})
		case domain.GroupSpecifications:
			updates = append(updates, firestore.Update{Path: "specifications", Value: candidate.Specifications})
		case domain.GroupPublication:
			updates = append(updates,
				firestore.Update{Path: "visibility", Value: candidate.Visibility},
				firestore.Update{Path: "featured", Value: candidate.Featured},
				firestore.Update{Path: "newProduct", Value: candidate.NewProduct},
				firestore.Update{Path: "productTags", Value: candidate.ProductTags},
				firestore.Update{Path: "industryApplications", Value: candidate.IndustryApplications},
			)
		}
	}

	updates = append(updates,
		firestore.Update{Path: "syncedAt", Value: update.SyncedAt},
		firestore.Update{Path: "updatedAt", Value: update.SyncedAt},
		firestore.Update{Path: "version", Value: firestore.Increment(1)},
	)
	return updates, nil
}
