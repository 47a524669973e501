package firestore

import (
	"context"
	"errors"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads the internal product store. The pipeline never
// writes to this collection.
type ProductRepository struct {
	base    *pfirestore.BaseRepository[domain.InternalProduct]
	onError func(error)
}

// ProductRepositoryOption customises the repository.
type ProductRepositoryOption func(*ProductRepository)

// WithWatchErrorHandler installs a callback for stream errors on live watches.
func WithWatchErrorHandler(handler func(error)) ProductRepositoryOption {
	return func(repo *ProductRepository) {
		if handler != nil {
			repo.onError = handler
		}
	}
}

// NewProductRepository constructs a Firestore-backed internal product reader.
func NewProductRepository(provider *pfirestore.Provider, opts ...ProductRepositoryOption) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	repo := &ProductRepository{
		base: pfirestore.NewBaseRepository(
			provider,
			productCollection,
			pfirestore.IdentityEncoder[domain.InternalProduct](),
			pfirestore.StructDecoder[domain.InternalProduct](),
		),
		onError: func(error) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

var _ repositories.ProductSourceRepository = (*ProductRepository)(nil)

// List returns every internal product.
func (r *ProductRepository) List(ctx context.Context) ([]domain.InternalProduct, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	products := make([]domain.InternalProduct, 0, len(docs))
	for _, doc := range docs {
		product := doc.Data
		product.ID = doc.ID
		products = append(products, product)
	}
	return products, nil
}

// FindByID loads a single internal product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.InternalProduct, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.InternalProduct{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// Watch installs a snapshot listener on the product collection and forwards
// changes to the handler. The initial snapshot is skipped; callers are
// expected to reconcile existing state separately.
func (r *ProductRepository) Watch(ctx context.Context, handler repositories.ProductChangeHandler) (repositories.StopWatchFunc, error) {
	if handler == nil {
		return nil, errors.New("product repository: watch handler is required")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return nil, err
	}

	stop := pfirestore.Watch(ctx, coll.Query, true, func(ctx context.Context, change pfirestore.Change) {
		product := domain.InternalProduct{ID: change.Snapshot.Ref.ID}
		if doc, err := r.base.Decode(ctx, change.Snapshot); err == nil {
			product = doc.Data
			product.ID = doc.ID
		} else if change.Kind != pfirestore.ChangeKindRemoved {
			r.onError(err)
			return
		}
		handler(ctx, domain.ProductChange{
			Kind:    changeKind(change.Kind),
			Product: product,
		})
	}, r.onError)

	return repositories.StopWatchFunc(stop), nil
}

func changeKind(kind pfirestore.ChangeKind) domain.ChangeKind {
	switch kind {
	case pfirestore.ChangeKindModified:
		return domain.ChangeModified
	case pfirestore.ChangeKindRemoved:
		return domain.ChangeRemoved
	default:
		return domain.ChangeAdded
	}
}
