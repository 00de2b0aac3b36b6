package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// TrackHistoryUseCase appends history rows when a merge detects real
// price/status deltas. History length tracks market events, not observation
// frequency: nothing is written when nothing material changed.
type TrackHistoryUseCase struct {
	storage port.ListingStoragePort
	logger  port.LoggerPort
	now     func() time.Time
}

func NewTrackHistoryUseCase(storage port.ListingStoragePort, logger port.LoggerPort) *TrackHistoryUseCase {
	return &TrackHistoryUseCase{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordIfChanged compares the stored and merged snapshots. A price-history
// row is appended when price_amount or status differ (capturing both), a
// status-history row only when status differs.
func (uc *TrackHistoryUseCase) RecordIfChanged(ctx context.Context, listingID int64, old, new *domain.Listing) error {
	priceChanged := !floatEqual(old.PriceAmount, new.PriceAmount)
	statusChanged := old.Status != new.Status

	if !priceChanged && !statusChanged {
		return nil
	}

	now := uc.now()
	entry := domain.PriceHistoryEntry{
		ListingID:   listingID,
		Status:      new.Status,
		PriceAmount: new.PriceAmount,
		Currency:    new.Currency,
		CapturedAt:  now,
	}
	if err := uc.storage.AppendPriceHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append price history for listing %d: %w", listingID, err)
	}

	if statusChanged {
		oldStatus := old.Status
		statusEntry := domain.StatusHistoryEntry{
			ListingID: listingID,
			OldStatus: &oldStatus,
			NewStatus: new.Status,
			ChangedAt: now,
		}
		if err := uc.storage.AppendStatusHistory(ctx, statusEntry); err != nil {
			return fmt.Errorf("failed to append status history for listing %d: %w", listingID, err)
		}
	}

	uc.logger.Debug("History recorded", port.Fields{
		"listing_id":     listingID,
		"price_changed":  priceChanged,
		"status_changed": statusChanged,
	})
	return nil
}

// RecordInitial writes the baseline rows for a freshly inserted listing: its
// first price observation and an open status transition.
func (uc *TrackHistoryUseCase) RecordInitial(ctx context.Context, listingID int64, listing *domain.Listing) error {
	now := uc.now()
	if listing.PriceAmount != nil {
		entry := domain.PriceHistoryEntry{
			ListingID:   listingID,
			Status:      listing.Status,
			PriceAmount: listing.PriceAmount,
			Currency:    listing.Currency,
			CapturedAt:  now,
		}
		if err := uc.storage.AppendPriceHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append initial price history for listing %d: %w", listingID, err)
		}
	}
	statusEntry := domain.StatusHistoryEntry{
		ListingID: listingID,
		OldStatus: nil,
		NewStatus: listing.Status,
		ChangedAt: now,
	}
	if err := uc.storage.AppendStatusHistory(ctx, statusEntry); err != nil {
		return fmt.Errorf("failed to append initial status history for listing %d: %w", listingID, err)
	}
	return nil
}

// RecordFieldChanges appends the field-level change log produced by a merge.
func (uc *TrackHistoryUseCase) RecordFieldChanges(ctx context.Context, listingID int64, changes []domain.FieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	now := uc.now()
	entries := make([]domain.FieldHistoryEntry, 0, len(changes))
	for _, ch := range changes {
		entries = append(entries, domain.FieldHistoryEntry{
			ListingID: listingID,
			Change:    ch,
			ChangedAt: now,
		})
	}
	if err := uc.storage.AppendFieldHistory(ctx, entries); err != nil {
		return fmt.Errorf("failed to append field history for listing %d: %w", listingID, err)
	}
	return nil
}

func floatEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
