package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// maxUpsertAttempts bounds the conflict-retry loop. Two parallel workers
// racing on the same dedupe_hash resolve on the second pass; more retries
// only matter if rows are also being deleted concurrently, which the
// pipeline never does.
const maxUpsertAttempts = 3

// ResolveResult reports the outcome of one resolve-and-upsert.
type ResolveResult struct {
	ListingID     int64
	Created       bool
	ChangedFields []domain.FieldChange
}

// ChangedFieldNames returns the bare set of changed field names.
func (r ResolveResult) ChangedFieldNames() []string {
	names := make([]string, 0, len(r.ChangedFields))
	for _, ch := range r.ChangedFields {
		names = append(names, ch.Field)
	}
	return names
}

// ResolveListingUseCase computes stable identity hashes and decides
// insert-vs-update against the canonical store. The store's uniqueness
// constraint on dedupe_hash is the sole serialization point: a write
// conflict means someone else just created the row, so the operation
// retries as a merge against the now-current row.
type ResolveListingUseCase struct {
	storage  port.ListingStoragePort
	history  *TrackHistoryUseCase
	identity domain.IdentityConfig
	logger   port.LoggerPort
	now      func() time.Time
}

func NewResolveListingUseCase(storage port.ListingStoragePort, history *TrackHistoryUseCase, identity domain.IdentityConfig, logger port.LoggerPort) *ResolveListingUseCase {
	return &ResolveListingUseCase{
		storage:  storage,
		history:  history,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveAndUpsert derives the listing's identity and merges it into the
// store. Returns *domain.IdentityError when no dedupe key is derivable.
func (uc *ResolveListingUseCase) ResolveAndUpsert(ctx context.Context, incoming *domain.Listing) (ResolveResult, error) {
	if err := incoming.DeriveIdentity(uc.identity); err != nil {
		return ResolveResult{}, err
	}

	now := uc.now()
	if incoming.SeenFirstAt.IsZero() {
		incoming.SeenFirstAt = now
	}
	incoming.SeenLastAt = now

	var lastErr error
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		stored, err := uc.storage.GetByDedupeHash(ctx, incoming.DedupeHash)
		switch {
		case err == nil:
			return uc.mergeExisting(ctx, stored, incoming, now)
		case errors.Is(err, domain.ErrListingNotFound):
			result, insertErr := uc.insertNew(ctx, incoming)
			if errors.Is(insertErr, domain.ErrDuplicateDedupeHash) {
				// Lost the race: another worker created this row between our
				// lookup and insert. Re-read and merge.
				uc.logger.Debug("Upsert conflict, retrying as merge", port.Fields{
					"dedupe_hash": incoming.DedupeHash,
					"attempt":     attempt + 1,
				})
				lastErr = insertErr
				continue
			}
			return result, insertErr
		default:
			return ResolveResult{}, fmt.Errorf("failed to look up listing by dedupe hash: %w", err)
		}
	}
	return ResolveResult{}, fmt.Errorf("upsert did not converge after %d attempts: %w", maxUpsertAttempts, lastErr)
}

func (uc *ResolveListingUseCase) insertNew(ctx context.Context, incoming *domain.Listing) (ResolveResult, error) {
	id, err := uc.storage.Insert(ctx, incoming)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateDedupeHash) {
			return ResolveResult{}, err
		}
		return ResolveResult{}, fmt.Errorf("failed to insert listing: %w", err)
	}
	incoming.ID = id

	if err := uc.history.RecordInitial(ctx, id, incoming); err != nil {
		return ResolveResult{}, err
	}

	uc.logger.Debug("Listing inserted", port.Fields{
		"listing_id":  id,
		"source_code": incoming.SourceCode,
	})
	return ResolveResult{ListingID: id, Created: true}, nil
}

func (uc *ResolveListingUseCase) mergeExisting(ctx context.Context, stored, incoming *domain.Listing, now time.Time) (ResolveResult, error) {
	merged, changes := domain.Merge(stored, incoming, now)

	if err := uc.storage.Update(ctx, merged); err != nil {
		return ResolveResult{}, fmt.Errorf("failed to update listing %d: %w", stored.ID, err)
	}

	if len(changes) > 0 {
		if err := uc.history.RecordIfChanged(ctx, stored.ID, stored, merged); err != nil {
			return ResolveResult{}, err
		}
		if err := uc.history.RecordFieldChanges(ctx, stored.ID, changes); err != nil {
			return ResolveResult{}, err
		}
	}

	return ResolveResult{ListingID: stored.ID, Created: false, ChangedFields: changes}, nil
}
