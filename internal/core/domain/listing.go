package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListingStatus is the commercial state of a published listing.
type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusInactive ListingStatus = "inactive"
	StatusSold     ListingStatus = "sold"
	StatusUnknown  ListingStatus = "unknown"
)

// PriceType distinguishes sale from rent listings.
type PriceType string

const (
	PriceTypeSale    PriceType = "sale"
	PriceTypeRent    PriceType = "rent"
	PriceTypeUnknown PriceType = "unknown"
)

// GeoPrecision records how trustworthy a listing coordinate is.
type GeoPrecision string

const (
	GeoExact   GeoPrecision = "exact"
	GeoApprox  GeoPrecision = "approx"
	GeoColony  GeoPrecision = "colony"
	GeoUnknown GeoPrecision = "unknown"
)

// Source is a catalogued origin portal. Immutable once created except for
// the active flag.
type Source struct {
	ID         int64
	SourceCode string
	SourceName string
	BaseURL    string
	IsActive   bool
}

// Listing is the canonical normalized record for one published property.
// Nullable numerics are pointers; empty string means "absent" for text.
type Listing struct {
	ID              int64
	SourceCode      string
	SourceListingID string
	ParseVersion    string

	URL             string
	URLNormalized   string
	URLHash         string
	FingerprintHash string
	DedupeHash      string

	Status         ListingStatus
	PriceType      PriceType
	PriceAmount    *float64
	Currency       string
	MaintenanceFee *float64

	PropertyType       string
	AreaConstructionM2 *float64
	AreaLandM2         *float64
	Bedrooms           *int
	Bathrooms          *float64
	HalfBathrooms      *float64
	Parking            *int
	Floors             *int
	AgeYears           *int

	Title       string
	Description string

	Street       string
	Colony       string
	Municipality string
	State        string
	Country      string
	PostalCode   string

	Lat          *float64
	Lng          *float64
	GeoPrecision GeoPrecision

	// Preservation blobs. Never discarded, even when a field cannot be
	// normalized; RawJSON always carries the full source payload verbatim.
	ImagesJSON    json.RawMessage
	ContactJSON   json.RawMessage
	AmenitiesJSON json.RawMessage
	DetailsJSON   json.RawMessage
	RawJSON       json.RawMessage

	// Timestamps claimed by the source itself (untrusted) vs observed by
	// this pipeline.
	SourceFirstSeenAt *time.Time
	SourceLastSeenAt  *time.Time
	SeenFirstAt       time.Time
	SeenLastAt        time.Time
}

// IdentityConfig tunes the fingerprint tolerance window. Near-duplicate
// listings whose area/price differ by less than a step still collide.
type IdentityConfig struct {
	AreaStepM2 float64 // rounding step for construction area, m²
	PriceStep  float64 // rounding step for price amount
}

// DefaultIdentityConfig mirrors the unify pipeline: area to one decimal,
// price to whole units.
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{AreaStepM2: 0.1, PriceStep: 1}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func roundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return float64(int64(v/step+0.5)) * step
}

// ComputeURLHash returns SHA-256 of the normalized URL, or "" when there is
// no trustworthy normalized URL.
func (l *Listing) ComputeURLHash() string {
	if l.URLNormalized == "" {
		return ""
	}
	return sha256Hex(l.URLNormalized)
}

// ComputeFingerprint derives the identity fallback hash from approximate
// physical/location attributes.
func (l *Listing) ComputeFingerprint(cfg IdentityConfig) string {
	var area, price float64
	if l.AreaConstructionM2 != nil {
		area = roundToStep(*l.AreaConstructionM2, cfg.AreaStepM2)
	}
	if l.PriceAmount != nil {
		price = roundToStep(*l.PriceAmount, cfg.PriceStep)
	}
	bedrooms := 0
	if l.Bedrooms != nil {
		bedrooms = *l.Bedrooms
	}
	chunks := []string{
		strings.ToLower(strings.TrimSpace(l.Municipality)),
		strings.ToLower(strings.TrimSpace(l.Colony)),
		fmt.Sprintf("%.1f", area),
		fmt.Sprintf("%.0f", price),
		fmt.Sprintf("%d", bedrooms),
	}
	return sha256Hex(strings.Join(chunks, "|"))
}

// DeriveIdentity fills URLHash, FingerprintHash and DedupeHash. The dedupe
// hash equals the URL hash when a normalized URL exists, otherwise the
// fingerprint. A listing yielding neither is rejected with IdentityError.
func (l *Listing) DeriveIdentity(cfg IdentityConfig) error {
	l.URLHash = l.ComputeURLHash()
	l.FingerprintHash = l.ComputeFingerprint(cfg)

	switch {
	case l.URLHash != "":
		l.DedupeHash = l.URLHash
	case l.FingerprintHash != "":
		l.DedupeHash = l.FingerprintHash
	default:
		return &IdentityError{SourceCode: l.SourceCode, Reason: "no derivable dedupe key"}
	}
	return nil
}

// HasEconomicSignal reports whether the listing carries at least a price or
// an area value. Listings without any economic signal must not be persisted
// as comparable candidates.
func (l *Listing) HasEconomicSignal() bool {
	return l.PriceAmount != nil || l.AreaConstructionM2 != nil || l.AreaLandM2 != nil
}

// RelevantArea returns the area dimension used for price-per-unit math:
// construction area for buildings, land area for bare land.
func (l *Listing) RelevantArea() *float64 {
	if l.PropertyType == "terreno" {
		return l.AreaLandM2
	}
	return l.AreaConstructionM2
}
