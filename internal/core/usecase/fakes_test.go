package usecase

import (
	"context"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

type nopLogger struct{}

func (n *nopLogger) Info(msg string, fields port.Fields)             {}
func (n *nopLogger) Warn(msg string, fields port.Fields)             {}
func (n *nopLogger) Error(msg string, err error, fields port.Fields) {}
func (n *nopLogger) Debug(msg string, fields port.Fields)            {}
func (n *nopLogger) WithFields(fields port.Fields) port.LoggerPort   { return n }

// fakeStorage is an in-memory ListingStoragePort with the same dedupe_hash
// uniqueness semantics as the real store.
type fakeStorage struct {
	nextID int64
	byHash map[string]*domain.Listing
	byID   map[int64]*domain.Listing

	priceHistory  []domain.PriceHistoryEntry
	statusHistory []domain.StatusHistoryEntry
	fieldHistory  []domain.FieldHistoryEntry
	runs          []domain.IngestionRun
	sources       map[string]int64
	pool          []domain.Listing

	// onInsert runs before each insert; lets tests simulate a concurrent
	// writer sneaking in between lookup and insert.
	onInsert func(s *fakeStorage) error

	deactivated int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		byHash:  make(map[string]*domain.Listing),
		byID:    make(map[int64]*domain.Listing),
		sources: make(map[string]int64),
	}
}

func (s *fakeStorage) EnsureSource(ctx context.Context, src domain.Source) (int64, error) {
	if id, ok := s.sources[src.SourceCode]; ok {
		return id, nil
	}
	id := int64(len(s.sources) + 1)
	s.sources[src.SourceCode] = id
	return id, nil
}

func (s *fakeStorage) GetByDedupeHash(ctx context.Context, dedupeHash string) (*domain.Listing, error) {
	l, ok := s.byHash[dedupeHash]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeStorage) Insert(ctx context.Context, listing *domain.Listing) (int64, error) {
	if s.onInsert != nil {
		if err := s.onInsert(s); err != nil {
			return 0, err
		}
	}
	if _, exists := s.byHash[listing.DedupeHash]; exists {
		return 0, domain.ErrDuplicateDedupeHash
	}
	s.nextID++
	cp := *listing
	cp.ID = s.nextID
	s.byHash[cp.DedupeHash] = &cp
	s.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStorage) Update(ctx context.Context, listing *domain.Listing) error {
	stored, ok := s.byID[listing.ID]
	if !ok {
		return domain.ErrListingNotFound
	}
	delete(s.byHash, stored.DedupeHash)
	cp := *listing
	s.byID[cp.ID] = &cp
	s.byHash[cp.DedupeHash] = &cp
	return nil
}

func (s *fakeStorage) AppendPriceHistory(ctx context.Context, entry domain.PriceHistoryEntry) error {
	s.priceHistory = append(s.priceHistory, entry)
	return nil
}

func (s *fakeStorage) AppendStatusHistory(ctx context.Context, entry domain.StatusHistoryEntry) error {
	s.statusHistory = append(s.statusHistory, entry)
	return nil
}

func (s *fakeStorage) AppendFieldHistory(ctx context.Context, entries []domain.FieldHistoryEntry) error {
	s.fieldHistory = append(s.fieldHistory, entries...)
	return nil
}

func (s *fakeStorage) GetComparablePool(ctx context.Context, municipality string, priceType domain.PriceType) ([]domain.Listing, error) {
	return s.pool, nil
}

func (s *fakeStorage) DeactivateStale(ctx context.Context, unseenFor time.Duration) (int64, error) {
	return s.deactivated, nil
}

func (s *fakeStorage) SaveRun(ctx context.Context, run domain.IngestionRun) error {
	s.runs = append(s.runs, run)
	return nil
}
