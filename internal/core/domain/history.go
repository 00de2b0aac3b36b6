package domain

import "time"

// ChangeCategory classifies a field change for the field-level history log.
type ChangeCategory string

const (
	ChangePrice    ChangeCategory = "price"
	ChangeStatus   ChangeCategory = "status"
	ChangeContent  ChangeCategory = "content"
	ChangeLocation ChangeCategory = "location"
	ChangeMetadata ChangeCategory = "metadata"
)

// FieldChange records one field whose value materially changed during a
// merge. Old/New carry the normalized values that were compared.
type FieldChange struct {
	Field    string
	Old      any
	New      any
	Category ChangeCategory
}

// PriceHistoryEntry is one append-only row of listing_price_history. It
// captures both price and status even when only one changed, to keep
// correlated history queries simple.
type PriceHistoryEntry struct {
	ListingID   int64
	Status      ListingStatus
	PriceAmount *float64
	Currency    string
	CapturedAt  time.Time
}

// StatusHistoryEntry is one append-only row of listing_status_history.
// OldStatus is nil for the row written on first insert.
type StatusHistoryEntry struct {
	ListingID int64
	OldStatus *ListingStatus
	NewStatus ListingStatus
	ChangedAt time.Time
}

// FieldHistoryEntry is one append-only row of listing_field_history.
type FieldHistoryEntry struct {
	ListingID int64
	Change    FieldChange
	ChangedAt time.Time
}
