package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const syncLogCollection = "sync_logs"

// SyncLogRepository appends immutable sync audit records.
type SyncLogRepository struct {
	base *pfirestore.BaseRepository[domain.SyncLogEntry]
}

// NewSyncLogRepository constructs a Firestore-backed sync log repository.
func NewSyncLogRepository(provider *pfirestore.Provider) (*SyncLogRepository, error) {
	if provider == nil {
		return nil, errors.New("sync log repository requires firestore provider")
	}
	return &SyncLogRepository{
		base: pfirestore.NewBaseRepository(
			provider,
			syncLogCollection,
			pfirestore.IdentityEncoder[domain.SyncLogEntry](),
			pfirestore.StructDecoder[domain.SyncLogEntry](),
		),
	}, nil
}

var _ repositories.SyncLogRepository = (*SyncLogRepository)(nil)

// Append stores one audit record and returns its document id.
func (r *SyncLogRepository) Append(ctx context.Context, entry domain.SyncLogEntry) (string, error) {
	if strings.TrimSpace(entry.SyncID) == "" {
		return "", errors.New("sync log repository: sync id is required")
	}
	if strings.TrimSpace(entry.InternalProductID) == "" {
		return "", errors.New("sync log repository: internal product id is required")
	}

	id, _, err := r.base.Add(ctx, entry)
	if err != nil {
		return "", err
	}
	return id, nil
}
