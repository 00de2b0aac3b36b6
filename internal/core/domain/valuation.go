package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subject describes the property to be valued. Municipality, property type,
// area and price type are required; the rest sharpen scoring when present.
type Subject struct {
	Municipality string
	Colony       string
	PropertyType string
	PriceType    PriceType
	AreaM2       float64

	Lat       *float64
	Lng       *float64
	Bedrooms  *int
	Bathrooms *float64
	Parking   *int
	AgeYears  *int
}

// SelectionScope tags how far the comparable filter had to widen. Anything
// beyond colony degrades confidence downstream.
type SelectionScope string

const (
	ScopeColony       SelectionScope = "colony"
	ScopeRadius       SelectionScope = "radius"
	ScopeMunicipality SelectionScope = "municipality"
	ScopeState        SelectionScope = "state"
)

// ScoredComparable is one candidate listing with its similarity score in
// [0, 1].
type ScoredComparable struct {
	Listing    Listing
	Similarity float64
}

// ComparableSet is the ordered output of the comparable selector.
// Deterministic for the same subject and pool state.
type ComparableSet struct {
	Subject     Subject
	Scope       SelectionScope
	Comparables []ScoredComparable
}

// Adjustment is one named multiplicative correction applied to a ppu value.
type Adjustment struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// ValuationComparable is the immutable join row linking a listing to the
// valuation it informed.
type ValuationComparable struct {
	ListingID   int64        `json:"listing_id"`
	PPURaw      float64      `json:"ppu_raw"`
	PPUAdjusted float64      `json:"ppu_adjusted"`
	Similarity  float64      `json:"similarity_score"`
	Adjustments []Adjustment `json:"adjustments"`
}

// ConfidenceFactors are the four independently-capped components of the
// 0-100 confidence score.
type ConfidenceFactors struct {
	SampleSize   float64 `json:"sample_size"`
	GeoPrecision float64 `json:"geo_precision"`
	Dispersion   float64 `json:"dispersion"`
	Completeness float64 `json:"completeness"`
}

// ValuationTrace preserves the full computation for auditability.
type ValuationTrace struct {
	SampleSize     int                `json:"sample_size"`
	TrimmedOut     int                `json:"trimmed_out"`
	PPUBase        float64            `json:"ppu_base"`
	PPUAdjusted    float64            `json:"ppu_adjusted"`
	MedianCompArea float64            `json:"median_comp_area"`
	Scope          SelectionScope     `json:"scope"`
	Weights        map[string]float64 `json:"weights"`
	Factors        ConfidenceFactors  `json:"factors"`
	RangeClamped   bool               `json:"range_clamped,omitempty"`
}

// Valuation is a point-in-time estimate. Write-once.
type Valuation struct {
	ID              uuid.UUID
	Subject         Subject
	EstimatedValue  float64
	EstimatedLow    float64
	EstimatedHigh   float64
	ConfidenceScore float64
	Method          string
	Comparables     []ValuationComparable
	Trace           ValuationTrace
	CreatedAt       time.Time
}
