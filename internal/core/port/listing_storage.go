package port

import (
	"context"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// ListingStoragePort defines the contract for persisting canonical listings
// and their append-only history in the relational store. The store
// guarantees a unique-key violation (domain.ErrDuplicateDedupeHash) on
// duplicate dedupe_hash and referential integrity from history rows to
// listings.id.
type ListingStoragePort interface {
	EnsureSource(ctx context.Context, src domain.Source) (int64, error)

	GetByDedupeHash(ctx context.Context, dedupeHash string) (*domain.Listing, error)
	Insert(ctx context.Context, listing *domain.Listing) (int64, error)
	Update(ctx context.Context, listing *domain.Listing) error

	AppendPriceHistory(ctx context.Context, entry domain.PriceHistoryEntry) error
	AppendStatusHistory(ctx context.Context, entry domain.StatusHistoryEntry) error
	AppendFieldHistory(ctx context.Context, entries []domain.FieldHistoryEntry) error

	// GetComparablePool returns the candidate listings for one municipality
	// and price type. Eventual consistency is acceptable here; selection
	// does not require a transactional snapshot.
	GetComparablePool(ctx context.Context, municipality string, priceType domain.PriceType) ([]domain.Listing, error)

	DeactivateStale(ctx context.Context, unseenFor time.Duration) (int64, error)

	SaveRun(ctx context.Context, run domain.IngestionRun) error
}
