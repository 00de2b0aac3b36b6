package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseStored(seenFirst time.Time) *Listing {
	return &Listing{
		ID:                 7,
		SourceCode:         "casas365",
		Status:             StatusActive,
		PriceType:          PriceTypeSale,
		PriceAmount:        fptr(2_500_000),
		Currency:           "MXN",
		PropertyType:       "casa",
		AreaConstructionM2: fptr(150),
		Bedrooms:           iptr(3),
		Title:              "Casa en Cumbres",
		Colony:             "Cumbres",
		Municipality:       "Monterrey",
		SeenFirstAt:        seenFirst,
		SeenLastAt:         seenFirst,
	}
}

func TestMergeUnchangedObservationIsNoOpBeyondTimestamp(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	stored := baseStored(seenFirst)
	incoming := baseStored(seenFirst)

	merged, changes := Merge(stored, incoming, now)

	assert.Empty(t, changes)
	assert.Equal(t, seenFirst, merged.SeenFirstAt)
	assert.Equal(t, now, merged.SeenLastAt)
	require.NotNil(t, merged.PriceAmount)
	assert.Equal(t, 2_500_000.0, *merged.PriceAmount)
}

func TestMergeNilIncomingNeverErasesStoredValue(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(24 * time.Hour)
	stored := baseStored(seenFirst)
	incoming := &Listing{SourceCode: "casas365", SeenFirstAt: now, SeenLastAt: now}

	merged, changes := Merge(stored, incoming, now)

	assert.Empty(t, changes)
	require.NotNil(t, merged.PriceAmount)
	assert.Equal(t, 2_500_000.0, *merged.PriceAmount)
	assert.Equal(t, "Casa en Cumbres", merged.Title)
	assert.Equal(t, "Cumbres", merged.Colony)
}

func TestMergePriceChangeIsReportedWithCategory(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(24 * time.Hour)
	stored := baseStored(seenFirst)
	incoming := baseStored(seenFirst)
	incoming.PriceAmount = fptr(2_350_000)

	merged, changes := Merge(stored, incoming, now)

	require.Len(t, changes, 1)
	assert.Equal(t, "price_amount", changes[0].Field)
	assert.Equal(t, ChangePrice, changes[0].Category)
	assert.Equal(t, 2_500_000.0, changes[0].Old)
	assert.Equal(t, 2_350_000.0, changes[0].New)
	require.NotNil(t, merged.PriceAmount)
	assert.Equal(t, 2_350_000.0, *merged.PriceAmount)
}

func TestMergeStatusChange(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(24 * time.Hour)
	stored := baseStored(seenFirst)
	incoming := baseStored(seenFirst)
	incoming.Status = StatusSold

	merged, changes := Merge(stored, incoming, now)

	require.Len(t, changes, 1)
	assert.Equal(t, "status", changes[0].Field)
	assert.Equal(t, ChangeStatus, changes[0].Category)
	assert.Equal(t, StatusSold, merged.Status)
}

func TestMergeSeenFirstKeepsMinimum(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	earlier := seenFirst.Add(-72 * time.Hour)
	now := seenFirst.Add(24 * time.Hour)
	stored := baseStored(seenFirst)
	incoming := baseStored(earlier)

	merged, _ := Merge(stored, incoming, now)

	assert.Equal(t, earlier, merged.SeenFirstAt)
	assert.Equal(t, now, merged.SeenLastAt)
}

func TestMergeSourceTimestampsKeepMinMax(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(24 * time.Hour)

	early := seenFirst.Add(-48 * time.Hour)
	late := seenFirst.Add(12 * time.Hour)

	stored := baseStored(seenFirst)
	stored.SourceFirstSeenAt = &seenFirst
	stored.SourceLastSeenAt = &seenFirst

	incoming := baseStored(seenFirst)
	incoming.SourceFirstSeenAt = &early
	incoming.SourceLastSeenAt = &late

	merged, _ := Merge(stored, incoming, now)

	require.NotNil(t, merged.SourceFirstSeenAt)
	require.NotNil(t, merged.SourceLastSeenAt)
	assert.Equal(t, early, *merged.SourceFirstSeenAt)
	assert.Equal(t, late, *merged.SourceLastSeenAt)
}

func TestMergeTinyPriceNoiseBelowCentIsIgnored(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(time.Hour)
	stored := baseStored(seenFirst)
	incoming := baseStored(seenFirst)
	incoming.PriceAmount = fptr(2_500_000.001)

	_, changes := Merge(stored, incoming, now)

	assert.Empty(t, changes)
}

func TestMergeRawJSONRefreshesSilently(t *testing.T) {
	seenFirst := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := seenFirst.Add(time.Hour)
	stored := baseStored(seenFirst)
	stored.RawJSON = []byte(`{"v":1}`)
	incoming := baseStored(seenFirst)
	incoming.RawJSON = []byte(`{"v":2}`)

	merged, changes := Merge(stored, incoming, now)

	assert.Empty(t, changes)
	assert.Equal(t, []byte(`{"v":2}`), []byte(merged.RawJSON))
}
